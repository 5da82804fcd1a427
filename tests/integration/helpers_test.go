//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sis-teknik/servicedesk/internal/testutil"
	"github.com/stretchr/testify/require"
)

const memberPassword = "member-password"

type intakeResponse struct {
	ID                string    `json:"id"`
	CustomerName      string    `json:"customer_name"`
	Phone             string    `json:"phone"`
	DeviceModel       string    `json:"device_model"`
	Status            int       `json:"status"`
	StatusName        string    `json:"status_name"`
	PriceQuotePending bool      `json:"price_quote_pending"`
	SMSSent           bool      `json:"sms_sent"`
	SMSMessage        string    `json:"sms_message"`
	CreatedAt         time.Time `json:"created_at"`
}

type transitionResponse struct {
	Result             string `json:"result"`
	From               int    `json:"from"`
	To                 int    `json:"to"`
	NotificationQueued bool   `json:"notification_queued"`
}

type queueItemResponse struct {
	ID              string    `json:"id"`
	IntakeID        string    `json:"intake_id"`
	StatusCode      int       `json:"status_code"`
	Phone           string    `json:"phone"`
	Message         string    `json:"message"`
	DueAt           time.Time `json:"due_at"`
	Sent            bool      `json:"sent"`
	Attempts        int       `json:"attempts"`
	LastError       *string   `json:"last_error"`
	ProviderMessage *string   `json:"provider_message"`
}

type installationResponse struct {
	ID          string   `json:"id"`
	WorkOrderNo string   `json:"work_order_no"`
	Phone       string   `json:"phone"`
	Assignees   []string `json:"assignees"`
	Closed      bool     `json:"closed"`
	MountType   *string  `json:"mount_type"`
	PhotoURLs   []string `json:"photo_urls"`
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s%s", prefix, uuid.NewString()[:8])
}

// adminClient returns a client logged in as the bootstrap admin.
func adminClient(t *testing.T) *testutil.Client {
	t.Helper()
	c := newTestClient(t)
	c.LoginAs(t, "admin", adminPassword)
	return c
}

// memberClient creates an account with role and returns a logged-in client
// with its username.
func memberClient(t *testing.T, role string) (*testutil.Client, string) {
	t.Helper()
	username := uniqueName(role[:4] + "-")

	resp, err := adminClient(t).POST("/api/v1/users", map[string]string{
		"username":  username,
		"full_name": "Test " + role,
		"password":  memberPassword,
		"role":      role,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, testutil.ReadBody(t, resp))

	c := newTestClient(t)
	c.LoginAs(t, username, memberPassword)
	return c, username
}

func createIntake(t *testing.T, client *testutil.Client, payload map[string]any) intakeResponse {
	t.Helper()

	body := map[string]any{
		"customer_name": "Ayşe Yılmaz",
		"phone":         "05321112233",
		"device_model":  "xy100 robot",
		"complaint":     "şarj olmuyor",
	}
	for k, v := range payload {
		body[k] = v
	}

	resp, err := client.POST("/api/v1/intakes", body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data intakeResponse `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func setStatus(t *testing.T, client *testutil.Client, id, status string) transitionResponse {
	t.Helper()

	resp, err := client.PATCH("/api/v1/intakes/"+id, map[string]any{"status": status})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Transition transitionResponse `json:"transition"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data.Transition
}

func listQueue(t *testing.T, client *testutil.Client, intakeID string) []queueItemResponse {
	t.Helper()

	resp, err := client.GET("/api/v1/sms-queue?intake_id=" + intakeID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data []queueItemResponse `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

// makeDue moves every unsent item of an intake into the past so the next
// worker pass claims them.
func makeDue(t *testing.T, intakeID string) {
	t.Helper()
	_, err := testDB.Exec(context.Background(),
		`UPDATE sms_queue SET due_at = NOW() - INTERVAL '1 minute' WHERE intake_id = $1 AND sent = false`,
		intakeID)
	require.NoError(t, err)
}
