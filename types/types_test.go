package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionDaysLeft(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sub := &Subscription{IsActive: true, EndsAt: now.Add(90 * 24 * time.Hour)}

	assert.Equal(t, 90, sub.DaysLeft(now))
	assert.Equal(t, 90, sub.DaysLeft(now.Add(time.Minute)))
	assert.Equal(t, 1, sub.DaysLeft(sub.EndsAt.Add(-time.Second)))
	assert.Equal(t, 0, sub.DaysLeft(sub.EndsAt))

	var none *Subscription
	assert.Equal(t, 0, none.DaysLeft(now))
}

func TestSubscriptionActiveAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sub := &Subscription{IsActive: true, EndsAt: now.Add(time.Hour)}

	assert.True(t, sub.ActiveAt(now))
	assert.False(t, sub.ActiveAt(sub.EndsAt))

	sub.IsActive = false
	assert.False(t, sub.ActiveAt(now))
}

func TestParsePlanType(t *testing.T) {
	p, ok := ParsePlanType(" Semi_Annual ")
	assert.True(t, ok)
	assert.Equal(t, PlanSemiAnnual, p)
	assert.True(t, p.IsPaid())

	_, ok = ParsePlanType("weekly")
	assert.False(t, ok)
	assert.False(t, PlanTrial.IsPaid())
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Ola Nordmann", (&User{FirstName: "Ola", LastName: "Nordmann"}).DisplayName())
	assert.Equal(t, "@ola", (&User{Username: "ola"}).DisplayName())
	assert.Equal(t, "user", (&User{}).DisplayName())
}
