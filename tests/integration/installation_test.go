//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/sis-teknik/servicedesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createInstallation(t *testing.T, client *testutil.Client, assignees ...string) installationResponse {
	t.Helper()

	resp, err := client.POST("/api/v1/installations", map[string]any{
		"work_order_no": uniqueName("wo-"),
		"customer_name": "Mehmet Demir",
		"model":         "tv 55",
		"phone":         "05449998877",
		"address":       "Atatürk Cad. No:1",
		"service_type":  "TV",
		"assignees":     assignees,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data installationResponse `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

func TestInstallation_InstallerSeesOwnJobsOnly(t *testing.T) {
	technician, _ := memberClient(t, "technician")
	installer, username := memberClient(t, "installer")
	_, other := memberClient(t, "installer")

	mine := createInstallation(t, technician, username)
	theirs := createInstallation(t, technician, other)

	resp, err := installer.GET("/api/v1/installations")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Data []installationResponse `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &list)
	require.Len(t, list.Data, 1)
	assert.Equal(t, mine.ID, list.Data[0].ID)
	assert.Equal(t, "05449998877", list.Data[0].Phone)

	resp, err = installer.GET("/api/v1/installations/" + theirs.ID)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInstallation_InstallerCannotCreate(t *testing.T) {
	installer, username := memberClient(t, "installer")

	resp, err := installer.POST("/api/v1/installations", map[string]any{
		"work_order_no": "WO-1",
		"customer_name": "X",
		"phone":         "05001112233",
		"address":       "Y",
		"assignees":     []string{username},
	})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestInstallation_Close(t *testing.T) {
	technician, _ := memberClient(t, "technician")
	installer, username := memberClient(t, "installer")
	job := createInstallation(t, technician, username)
	path := "/api/v1/installations/" + job.ID + "/close"

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing mount type", map[string]any{"photo_urls": []string{"https://cdn.test/1.jpg"}}, http.StatusBadRequest},
		{"unknown mount type", map[string]any{"mount_type": "tavan", "photo_urls": []string{"https://cdn.test/1.jpg"}}, http.StatusBadRequest},
		{"no photos", map[string]any{"mount_type": "duvar"}, http.StatusBadRequest},
		{"closes", map[string]any{"mount_type": "duvar", "photo_urls": []string{" https://cdn.test/1.jpg "}}, http.StatusOK},
		{"already closed", map[string]any{"mount_type": "sehpa", "photo_urls": []string{"https://cdn.test/2.jpg"}}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := installer.POST(path, tt.body)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	resp, err := installer.GET("/api/v1/installations/" + job.ID)
	require.NoError(t, err)
	var result struct {
		Data installationResponse `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.True(t, result.Data.Closed)
	require.NotNil(t, result.Data.MountType)
	assert.Equal(t, "DUVAR", *result.Data.MountType)
	assert.Equal(t, []string{"https://cdn.test/1.jpg"}, result.Data.PhotoURLs)
}

func TestInstallation_UpdateAndDelete(t *testing.T) {
	technician, _ := memberClient(t, "technician")
	_, username := memberClient(t, "installer")
	job := createInstallation(t, technician, username)

	resp, err := technician.PATCH("/api/v1/installations/"+job.ID, map[string]any{
		"assignees": []string{" " + username + " ", username},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data installationResponse `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, []string{username}, result.Data.Assignees)

	resp, err = technician.DELETE("/api/v1/installations/" + job.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = technician.GET("/api/v1/installations/" + job.ID)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
