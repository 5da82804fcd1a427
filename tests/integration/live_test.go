//go:build integration

package integration

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sis-teknik/servicedesk/internal/live"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLive_RefreshAfterMutation(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/api/v1/live"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	var frame live.Frame
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, "connected", frame.Type)

	technician, _ := memberClient(t, "technician")
	createIntake(t, technician, nil)

	// Account creation above also publishes; any refresh is enough.
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	assert.Equal(t, "refresh", frame.Type)
}
