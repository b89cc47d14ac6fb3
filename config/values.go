package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// intValue читает целое значение, возвращая ошибку вместо молчаливого 0
func intValue(v *viper.Viper, key string) (int, error) {
	return cast.ToIntE(strings.TrimSpace(cast.ToString(v.Get(key))))
}

func floatValue(v *viper.Viper, key string) (float64, error) {
	return cast.ToFloat64E(strings.TrimSpace(cast.ToString(v.Get(key))))
}

func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	d, err := cast.ToDurationE(v.Get(key))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("значение должно быть больше 0")
	}
	return d, nil
}

// splitList разбивает строку со значениями через запятую
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
