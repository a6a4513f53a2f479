package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAutomation_ThresholdMinutes(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]interface{}
		fallback int
		want     int
	}{
		{"configured value wins", map[string]interface{}{"threshold_minutes": float64(90)}, 30, 90},
		{"missing config uses fallback", nil, 30, 30},
		{"zero falls back", map[string]interface{}{"threshold_minutes": float64(0)}, 45, 45},
		{"negative falls back", map[string]interface{}{"threshold_minutes": float64(-5)}, 30, 30},
		{"wrong type falls back", map[string]interface{}{"threshold_minutes": "60"}, 30, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Automation{Config: tt.config}
			assert.Equal(t, tt.want, a.ThresholdMinutes(tt.fallback))
		})
	}
}

func TestAutomation_MinCartValue(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]interface{}
		want   float64
	}{
		{"configured value", map[string]interface{}{"min_cart_value": float64(25.5)}, 25.5},
		{"missing config means no minimum", nil, 0},
		{"zero means no minimum", map[string]interface{}{"min_cart_value": float64(0)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Automation{Config: tt.config}
			assert.Equal(t, tt.want, a.MinCartValue())
		})
	}
}

func TestIsPageView(t *testing.T) {
	for _, eventType := range []string{EventPageview, EventProductView, EventCartView, EventCheckoutView} {
		assert.True(t, IsPageView(eventType), eventType)
	}
	for _, eventType := range []string{EventAddToCart, EventCheckoutStart, EventPurchase, EventSearch, EventIdentify, "unknown"} {
		assert.False(t, IsPageView(eventType), eventType)
	}
}
