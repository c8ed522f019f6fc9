package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckerProbes(t *testing.T) {
	h := &HealthChecker{Probes: []Probe{
		{Name: "Discord", Check: func(context.Context) error { return nil }},
	}}
	status := h.Check(context.Background())
	assert.Equal(t, "healthy", status.Status)
	require.Len(t, status.Services, 1)
	assert.Equal(t, "up", status.Services[0].Status)

	h.Probes = append(h.Probes, Probe{Name: "Feed", Check: func(context.Context) error {
		return errors.New("not synced")
	}})
	status = h.Check(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, Service{Name: "Feed", Status: "down", Message: "not synced"}, status.Services[1])
}
