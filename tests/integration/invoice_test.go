//go:build integration

package integration

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/sis-teknik/servicedesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var invoicePNG = base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01"))

type invoiceResponse struct {
	OwnerID string `json:"owner_id"`
	Owner   string `json:"owner"`
	Image   string `json:"image"`
}

func uploadInvoice(t *testing.T, id string, body map[string]string) int {
	t.Helper()
	resp, err := newTestClient(t).POST("/api/v1/invoices/"+id, body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode
}

func TestInvoice_UploadToInstallationAndIntake(t *testing.T) {
	technician, _ := memberClient(t, "technician")
	_, installer := memberClient(t, "installer")
	inst := createInstallation(t, technician, installer)
	intake := createIntake(t, technician, nil)

	tests := []struct {
		id    string
		owner string
	}{
		{inst.ID, "installation"},
		{intake.ID, "intake"},
	}

	for _, tt := range tests {
		t.Run(tt.owner, func(t *testing.T) {
			resp, err := technician.GET("/api/v1/invoices/" + tt.id)
			require.NoError(t, err)
			require.Equal(t, http.StatusNotFound, resp.StatusCode)
			_ = resp.Body.Close()

			status := uploadInvoice(t, tt.id, map[string]string{"image": "data:image/png;base64," + invoicePNG})
			require.Equal(t, http.StatusNoContent, status)

			resp, err = technician.GET("/api/v1/invoices/" + tt.id)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var result struct {
				Data invoiceResponse `json:"data"`
			}
			testutil.DecodeJSON(t, resp, &result)
			assert.Equal(t, tt.owner, result.Data.Owner)
			assert.Equal(t, tt.id, result.Data.OwnerID)
			assert.Equal(t, "data:image/png;base64,"+invoicePNG, result.Data.Image)
		})
	}
}

func TestInvoice_UploadRejections(t *testing.T) {
	technician, _ := memberClient(t, "technician")
	intake := createIntake(t, technician, nil)

	assert.Equal(t, http.StatusNotFound, uploadInvoice(t, "00000000-0000-4000-8000-000000000000", map[string]string{"image": invoicePNG}))
	assert.Equal(t, http.StatusNotFound, uploadInvoice(t, "not-a-uuid", map[string]string{"image": invoicePNG}))
	assert.Equal(t, http.StatusBadRequest, uploadInvoice(t, intake.ID, map[string]string{"image": ""}))
}

func TestInvoice_StaffReadRequiresTechnician(t *testing.T) {
	installer, _ := memberClient(t, "installer")

	resp, err := installer.GET("/api/v1/invoices/00000000-0000-4000-8000-000000000000")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
