package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenanceportal/models"
	"maintenanceportal/utils"
)

func TestCreateMemberWithRecurringDues(t *testing.T) {
	h := newHarness(false)

	member, err := h.memberService.CreateMember(context.Background(), CreateMemberRequest{
		SocietyName:         "Green Park",
		FlatNumber:          "B-202",
		Name:                "Ravi",
		Password:            "secret1",
		MaintenanceAmount:   1500,
		DueDayOfMonth:       ptrInt(10),
		RecurringDueEnabled: true,
	})
	require.NoError(t, err)

	assert.True(t, member.RecurringDueEnabled)
	require.NotNil(t, member.NextDueDate)
	assert.Equal(t, endOfDay(2025, time.April, 10), *member.NextDueDate)
	assert.Equal(t, models.MaintenanceMonthly, member.MaintenanceType)
	assert.True(t, utils.VerifyPassword("secret1", member.Password))
}

func TestCreateMemberExplicitNextDueDate(t *testing.T) {
	h := newHarness(false)
	explicit := time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC)

	member, err := h.memberService.CreateMember(context.Background(), CreateMemberRequest{
		SocietyName:         "Green Park",
		FlatNumber:          "B-203",
		Name:                "Ravi",
		Password:            "secret1",
		NextDueDate:         &explicit,
		RecurringDueEnabled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, endOfDay(2025, time.March, 20), *member.NextDueDate)
}

func TestCreateMemberRecurringWithoutSchedule(t *testing.T) {
	h := newHarness(false)

	_, err := h.memberService.CreateMember(context.Background(), CreateMemberRequest{
		SocietyName:         "Green Park",
		FlatNumber:          "B-204",
		Name:                "Ravi",
		Password:            "secret1",
		RecurringDueEnabled: true,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateMemberDuplicateFlat(t *testing.T) {
	h := newHarness(false)
	h.lateMember()

	_, err := h.memberService.CreateMember(context.Background(), CreateMemberRequest{
		SocietyName: "green park",
		FlatNumber:  "A-101",
		Name:        "Someone",
		Password:    "secret1",
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateMemberSchedule(t *testing.T) {
	ctx := context.Background()

	t.Run("disabling clears next due date", func(t *testing.T) {
		h := newHarness(false)
		m := h.lateMember()

		updated, err := h.memberService.UpdateMember(ctx, m.ID, UpdateMemberRequest{RecurringDueEnabled: boolPtr(false)})
		require.NoError(t, err)
		assert.False(t, updated.RecurringDueEnabled)
		assert.Nil(t, updated.NextDueDate)
		assert.Nil(t, h.member(m.ID).NextDueDate)
	})

	t.Run("enabling initializes from due day", func(t *testing.T) {
		h := newHarness(false)
		m := h.lateMember()
		_, err := h.memberService.UpdateMember(ctx, m.ID, UpdateMemberRequest{RecurringDueEnabled: boolPtr(false)})
		require.NoError(t, err)

		updated, err := h.memberService.UpdateMember(ctx, m.ID, UpdateMemberRequest{
			RecurringDueEnabled: boolPtr(true),
			DueDayOfMonth:       ptrInt(31),
		})
		require.NoError(t, err)
		assert.True(t, updated.RecurringDueEnabled)
		assert.Equal(t, endOfDay(2025, time.March, 31), *updated.NextDueDate)
	})

	t.Run("enabling without day fails", func(t *testing.T) {
		h := newHarness(false)
		m := &models.Member{SocietyName: "Green Park", FlatNumber: "C-1", Name: "Meera"}
		require.NoError(t, h.members.Create(ctx, m))

		_, err := h.memberService.UpdateMember(ctx, m.ID, UpdateMemberRequest{RecurringDueEnabled: boolPtr(true)})
		assert.ErrorIs(t, err, ErrValidation)
		assert.False(t, h.member(m.ID).RecurringDueEnabled)
	})

	t.Run("unknown member", func(t *testing.T) {
		h := newHarness(false)
		_, err := h.memberService.UpdateMember(ctx, 42, UpdateMemberRequest{})
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})
}

func TestDuesForLateMember(t *testing.T) {
	h := newHarness(false)
	m := h.lateMember()

	dues, err := h.memberService.Dues(context.Background(), m.ID, 3)
	require.NoError(t, err)
	require.Len(t, dues.Periods, 3)

	assert.Equal(t, "2025-01", dues.Periods[0].ID)
	assert.Equal(t, 100.0, dues.Periods[0].PenaltyAmount)
	assert.Equal(t, 50.0, dues.Periods[1].PenaltyAmount)
	assert.Equal(t, 0.0, dues.Periods[2].PenaltyAmount)
	for _, p := range dues.Periods {
		assert.True(t, p.IsOverdue)
	}
	assert.Equal(t, 3150.0, dues.Outstanding)
	assert.Equal(t, 50.0, dues.PenaltyUnit)
}

func TestPreviewPeriodsForDisabledMember(t *testing.T) {
	h := newHarness(false)
	m := &models.Member{SocietyName: "Green Park", FlatNumber: "C-2", Name: "Meera", MaintenanceAmount: 800, DueDayOfMonth: ptrInt(20)}
	require.NoError(t, h.members.Create(context.Background(), m))

	dues, err := h.memberService.Dues(context.Background(), m.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, dues.Periods)
	assert.Equal(t, 0.0, dues.Outstanding)

	preview, err := h.memberService.PreviewPeriods(context.Background(), m.ID, 2)
	require.NoError(t, err)
	require.Len(t, preview.Periods, 2)
	assert.Equal(t, endOfDay(2025, time.March, 20), preview.Periods[0].DueDate)
	assert.False(t, preview.Periods[0].IsOverdue)
}

func TestUpdateProfileKeepsSchedule(t *testing.T) {
	h := newHarness(false)
	m := h.lateMember()
	name := "Asha R."

	updated, err := h.memberService.UpdateProfile(context.Background(), m.ID, UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Asha R.", updated.Name)
	assert.Equal(t, endOfDay(2025, time.January, 5), *updated.NextDueDate)
}

func TestDeleteMember(t *testing.T) {
	h := newHarness(false)
	m := h.lateMember()

	require.NoError(t, h.memberService.DeleteMember(context.Background(), m.ID))
	assert.ErrorIs(t, h.memberService.DeleteMember(context.Background(), m.ID), ErrMemberNotFound)
}

func boolPtr(v bool) *bool {
	return &v
}
