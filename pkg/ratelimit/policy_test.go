package ratelimit

import (
	"testing"
	"time"
)

func TestClass_Valid(t *testing.T) {
	tests := []struct {
		class Class
		want  bool
	}{
		{ClassRead, true},
		{ClassWrite, true},
		{ClassBulk, true},
		{ClassAnalytics, true},
		{ClassAuth, true},
		{Class("admin"), false},
		{Class(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := tt.class.Valid(); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}

func TestDefaultPolicies(t *testing.T) {
	policies := DefaultPolicies()

	tests := []struct {
		class  Class
		limit  int
		window time.Duration
	}{
		{ClassRead, 200, time.Hour},
		{ClassWrite, 50, time.Hour},
		{ClassBulk, 10, time.Hour},
		{ClassAnalytics, 100, time.Hour},
		{ClassAuth, 20, 15 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			p, ok := policies[tt.class]
			if !ok {
				t.Fatalf("No policy for class %q", tt.class)
			}
			if p.Limit != tt.limit {
				t.Errorf("Limit = %d, want %d", p.Limit, tt.limit)
			}
			if p.Window != tt.window {
				t.Errorf("Window = %v, want %v", p.Window, tt.window)
			}
		})
	}
}

func TestValidatePolicies(t *testing.T) {
	tests := []struct {
		name     string
		policies map[Class]Policy
		wantErr  bool
	}{
		{
			name:     "defaults are valid",
			policies: DefaultPolicies(),
			wantErr:  false,
		},
		{
			name: "missing read class",
			policies: map[Class]Policy{
				ClassWrite: {Limit: 50, Window: time.Hour},
			},
			wantErr: true,
		},
		{
			name: "zero limit",
			policies: map[Class]Policy{
				ClassRead: {Limit: 0, Window: time.Hour},
			},
			wantErr: true,
		},
		{
			name: "negative window",
			policies: map[Class]Policy{
				ClassRead: {Limit: 10, Window: -time.Minute},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePolicies(tt.policies)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePolicies() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
