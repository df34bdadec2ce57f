package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownManager_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), nil, time.Second)

	var order []string
	sm.RegisterShutdownFunc("database", func(context.Context) error {
		order = append(order, "database")
		return nil
	})
	sm.RegisterShutdownFunc("audit", func(context.Context) error {
		order = append(order, "audit")
		return nil
	})

	assert.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"audit", "database"}, order)
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), &http.Server{}, 0)

	ran := false
	sm.RegisterShutdownFunc("first", func(context.Context) error {
		ran = true
		return nil
	})
	sm.RegisterShutdownFunc("second", func(context.Context) error {
		return errors.New("flush failed")
	})

	err := sm.Shutdown(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "second: flush failed")
	assert.True(t, ran, "later failures must not skip earlier cleanup")
}

func TestShutdownOTel_Nil(t *testing.T) {
	assert.NoError(t, ShutdownOTel(context.Background(), nil, NewLogger(InfoLevel, &bytes.Buffer{})))
}

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, NewLogger(InfoLevel, &bytes.Buffer{}))
	assert.NoError(t, err)
	assert.Nil(t, providers)
}
