package notifications

import (
	"strings"
	"testing"

	"github.com/sis-teknik/servicedesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderStatusMessage_AllNotifiedCodes(t *testing.T) {
	for code := domain.IntakeStatusWithTechnician; code <= domain.IntakeStatusReturned; code++ {
		t.Run(code.Name(), func(t *testing.T) {
			msg, ok := RenderStatusMessage(code, "Jane Doe", "XY100")

			require.True(t, ok)
			assert.True(t, strings.HasPrefix(msg, "SN : JANE DOE\nXY100 "))
			assert.True(t, strings.HasSuffix(msg, "\n"+signature))
		})
	}
}

func TestRenderStatusMessage_Unmapped(t *testing.T) {
	for _, code := range []domain.IntakeStatus{domain.IntakeStatusReceived, 0, 10} {
		msg, ok := RenderStatusMessage(code, "Jane Doe", "XY100")

		assert.False(t, ok, "code %d", code)
		assert.Empty(t, msg)
	}
}

func TestRenderStatusMessage_Exact(t *testing.T) {
	msg, ok := RenderStatusMessage(domain.IntakeStatusWithTechnician, "Jane Doe", "XY100")

	require.True(t, ok)
	assert.Equal(t,
		"SN : JANE DOE\nXY100 CIHAZINIZ İNCELENMEK ÜZERE TEKNİSYENE VERİLMİŞTİR.\nTEKNİK ELEKTRONİK 04162161262",
		msg)
}

func TestRenderStatusMessage_UpperCasing(t *testing.T) {
	tests := []struct {
		name       string
		customer   string
		model      string
		wantPrefix string
	}{
		{"turkish letters", "  ilker şimşek ", "iphone", "SN : ILKER ŞIMŞEK\nIPHONE CIHAZINIZ "},
		{"dotted i stays latin", "ali veli", "iPhone 13 mini", "SN : ALI VELI\nIPHONE 13 MINI CIHAZINIZ "},
		{"dotless i", "ılgın", "süpürge", "SN : ILGIN\nSÜPÜRGE CIHAZINIZ "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := RenderStatusMessage(domain.IntakeStatusDelivered, tt.customer, tt.model)

			require.True(t, ok)
			assert.True(t, strings.HasPrefix(msg, tt.wantPrefix), msg)
		})
	}
}

func TestIntakeMessage(t *testing.T) {
	msg := IntakeMessage("Jane Doe", "XY100")

	assert.Equal(t,
		"SN : JANE DOE\nXY100 CİHAZININ İNCELENMEK ÜZERE ATÖLYEMIZE KABUL EDİLMİŞTİR.\nTEKNİK ELEKTRONİK 04162161262",
		msg)
}

func TestInvoiceLink(t *testing.T) {
	assert.Equal(t, "https://servis.example.com/fatura/abc", InvoiceLink("https://servis.example.com/", "abc"))
	assert.Equal(t, "https://servis.example.com/fatura/abc", InvoiceLink("https://servis.example.com", "abc"))
}

func TestWelcomeMessage(t *testing.T) {
	const link = "https://servis.example.com/fatura/1"

	tests := []struct {
		name        string
		serviceType string
		contains    []string
		hasLink     bool
	}{
		{"tv install", "tv kurulum", []string{"TV KURULUM KAYDI ALINDI."}, true},
		{"tv mount dashed", "TV-MONTAJ", []string{"TV KURULUM KAYDI ALINDI."}, true},
		{"robot install", "Robot Kurulum", []string{"ROBOT KURULUM KAYDI ALINDI."}, true},
		{"repair", "TV_ARIZA", []string{"CIHAZININ INCELENMEK UZERE"}, false},
		{"default", "", []string{"ATÖLYEMIZE KABUL", "Fatura Yükleme:"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := WelcomeMessage(tt.serviceType, "Jane Doe", "XY100", link)

			assert.True(t, strings.HasPrefix(msg, "SN : JANE DOE\n"))
			for _, s := range tt.contains {
				assert.Contains(t, msg, s)
			}
			assert.Equal(t, tt.hasLink, strings.Contains(msg, link))
		})
	}
}

func TestInstallationMessage(t *testing.T) {
	const link = "https://servis.example.com/fatura/9"

	assert.Contains(t, InstallationMessage("TV", "a", "b", link), "TV KURULUM KAYDI ALINDI.")
	assert.Contains(t, InstallationMessage("robot", "a", "b", link), "ROBOT KURULUM KAYDI ALINDI.")

	msg := InstallationMessage("klima", "Jane", "ac-9", link)
	assert.Contains(t, msg, "MONTAJ KAYDI ALINDI.")
	assert.Contains(t, msg, "CİHAZ: AC-9")
	assert.Contains(t, msg, "FATURA: "+link)
}
