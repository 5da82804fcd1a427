package notifications

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/sis-teknik/servicedesk/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const signature = "TEKNİK ELEKTRONİK 04162161262"

// statusBodies holds the fixed text sent when an intake moves into a status.
// The received status has no entry: intake acceptance is announced separately.
var statusBodies = map[domain.IntakeStatus]string{
	domain.IntakeStatusWithTechnician:  "CIHAZINIZ İNCELENMEK ÜZERE TEKNİSYENE VERİLMİŞTİR.",
	domain.IntakeStatusAwaitingAction:  "CIHAZINIZ İŞLEM BEKLEMEKTEDİR. SİSTEMSEL KAYITLAR TAMAMLANDIĞINDA BİLGİ VERİLECEKTİR.",
	domain.IntakeStatusAwaitingParts:   "CIHAZINIZ PARÇA BEKLEMEKTEDİR. EN KISA SÜREDE İŞLEMLERİ TAMAMLANACAKTIR.",
	domain.IntakeStatusSentToCenter:    "CIHAZINIZ MERKEZE SEVK EDİLMİŞTİR. EN KISA SÜREDE ULAŞINCA BİLGİ VERİLECEKTİR.",
	domain.IntakeStatusReplacement:     "CIHAZINIZIN DEĞİŞİM İŞLEMLERİ YAPILACAKTIR. EN KISA SÜREDE TARAFINIZA BİLGİ SAĞLANACAKTIR.",
	domain.IntakeStatusRepairCompleted: "CIHAZINIZIN TAMİRİ TAMAMLANDI EN KISA SÜREDE TESLİM ALMANIZI RİCA EDERİZ. 20 İŞ GÜNÜ İÇERİSİNDE ALINMAYAN ÜRÜNLER İÇİN SORUMLULUK KABUL EDİLMEYECEKTİR.",
	domain.IntakeStatusDelivered:       "CIHAZINIZ TESLİM EDİLDİ GÜLE GÜLE KULLANMANIZ DİLEĞİYLE",
	domain.IntakeStatusReturned:        "CIHAZINIZ İADE EDİLMEK ÜZERE İADE KÖŞESİNE ALINMIŞTIR EN KISA SÜREDE İADE ALINIZ 20 GÜNÜ GEÇEN ÜRÜNLERİN KAYBOLMASI DURUMUNDA SORUMLULUK KABUL EDİLMEYECEKTİR.",
}

// RenderStatusMessage returns the customer text for a transition into code.
// It returns false for codes without a message.
func RenderStatusMessage(code domain.IntakeStatus, name, model string) (string, bool) {
	body, ok := statusBodies[code]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("SN : %s\n%s %s\n%s", upper(name), upper(model), body, signature), true
}

// IntakeMessage is the acceptance text sent when a device is checked in.
func IntakeMessage(name, model string) string {
	return fmt.Sprintf("SN : %s\n%s CİHAZININ İNCELENMEK ÜZERE ATÖLYEMIZE KABUL EDİLMİŞTİR.\n%s",
		upper(name), upper(model), signature)
}

// InvoiceLink is the public page where a customer uploads the purchase invoice.
func InvoiceLink(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/fatura/" + id
}

// WelcomeMessage picks the check-in text for an intake by its service type.
func WelcomeMessage(serviceType, name, model, invoiceLink string) string {
	switch normalizeServiceType(serviceType) {
	case "TV_KURULUM", "TV_MONTAJ", "TVKURULUM", "TVMONTAJ":
		return tvInstallMessage(name, invoiceLink)
	case "ROBOT_KURULUM", "ROBOTKURULUM":
		return robotInstallMessage(name, invoiceLink)
	case "TV_ARIZA", "ROBOT_ARIZA", "TVARIZA", "ROBOTARIZA":
		return fmt.Sprintf("SN : %s\n%s CIHAZININ INCELENMEK UZERE ATOLYEMIZE KABUL EDILMISTIR.\nTEKNIK ELEKTRONIK 04162161262",
			upper(name), upper(model))
	default:
		return WithInvoiceLink(IntakeMessage(name, model), invoiceLink)
	}
}

// WithInvoiceLink appends the invoice upload footer to msg.
func WithInvoiceLink(msg, invoiceLink string) string {
	return msg + "\n\nFatura Yükleme:\n" + invoiceLink
}

// InstallationMessage is sent when an on-site job is registered.
func InstallationMessage(serviceType, name, model, invoiceLink string) string {
	switch normalizeServiceType(serviceType) {
	case "TV", "TV_KURULUM", "TV_MONTAJ", "TVKURULUM", "TVMONTAJ":
		return tvInstallMessage(name, invoiceLink)
	case "ROBOT", "ROBOT_KURULUM", "ROBOTKURULUM":
		return robotInstallMessage(name, invoiceLink)
	default:
		return fmt.Sprintf("SN : %s\nMONTAJ KAYDI ALINDI.\nCİHAZ: %s\nFATURA: %s\nFATURA YUKLENMEDEN HIZMET VERILMEZ.",
			upper(name), upper(model), invoiceLink)
	}
}

func tvInstallMessage(name, invoiceLink string) string {
	return fmt.Sprintf("SN : %s\nTV KURULUM KAYDI ALINDI.\nFATURA: %s\nFATURA YUKLENMEDEN HIZMET VERILMEZ.",
		upper(name), invoiceLink)
}

func robotInstallMessage(name, invoiceLink string) string {
	return fmt.Sprintf("SN : %s\nROBOT KURULUM KAYDI ALINDI.\nFATURA: %s\nFATURA YUKLENMEDEN HIZMET VERILMEZ.",
		upper(name), invoiceLink)
}

// normalizeServiceType turns "tv kurulum" and "TV-KURULUM" into "TV_KURULUM".
func normalizeServiceType(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, v)
}

// upper applies locale-independent casing: "iPhone" becomes "IPHONE",
// not "İPHONE", while Turkish letters such as "ş" still map to "Ş".
// A Caser keeps state, so one is built per call.
func upper(s string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}
