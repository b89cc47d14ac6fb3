package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// PaymentSignaturePayload собирает строку "orderId|paymentId", которую подписывает платежный шлюз
func PaymentSignaturePayload(orderID, paymentID string) string {
	return orderID + "|" + paymentID
}

// GenerateHMAC создает HMAC-SHA256 для данных в шестнадцатеричном виде
func GenerateHMAC(data string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateHMAC проверяет HMAC за постоянное время
func ValidateHMAC(data string, signature string, key []byte) bool {
	expected, err := hex.DecodeString(GenerateHMAC(data, key))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// GenerateRandomKey генерирует случайный ключ заданной длины
func GenerateRandomKey(length int) ([]byte, error) {
	key := make([]byte, length)
	_, err := rand.Read(key)
	if err != nil {
		return nil, fmt.Errorf("failed to generate random key: %v", err)
	}
	return key, nil
}

// GenerateSecureToken генерирует безопасный токен
func GenerateSecureToken(length int) (string, error) {
	b, err := GenerateRandomKey(length)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashPassword создает bcrypt-хеш пароля
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %v", err)
	}
	return string(hashed), nil
}

// VerifyPassword проверяет пароль
func VerifyPassword(password, hashedPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateExpirationTime генерирует время истечения срока действия
func GenerateExpirationTime(duration time.Duration) time.Time {
	return time.Now().Add(duration)
}

// IsExpired проверяет, истек ли срок действия
func IsExpired(expirationTime time.Time) bool {
	return time.Now().After(expirationTime)
}
