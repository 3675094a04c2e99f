package compliance

import (
	"sort"

	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
)

// EmailPlatform canal genérico de último recurso.
const EmailPlatform = "email"

var platformTable = map[string]entity.TransmissionRule{
	"superpdp": {Method: entity.MethodPDP, Mandatory: true, Platform: "superpdp", Async: true,
		LabelKey: "transmission.superpdp", Icon: "building-bank"},
	"chorus_pro": {Method: entity.MethodB2GPortal, Mandatory: true, Platform: "chorus_pro", Async: true,
		LabelKey: "transmission.chorus_pro", Icon: "landmark"},
	"peppol": {Method: entity.MethodPeppol, Mandatory: false, Platform: "peppol", Async: true,
		LabelKey: "transmission.peppol", Icon: "network"},
	"sdi": {Method: entity.MethodClearance, Mandatory: true, Platform: "sdi", Async: true, DeadlineDays: 12,
		LabelKey: "transmission.sdi", Icon: "shield-check"},
	"ksef": {Method: entity.MethodClearance, Mandatory: true, Platform: "ksef", Async: true,
		LabelKey: "transmission.ksef", Icon: "shield-check"},
	"verifactu": {Method: entity.MethodRealtimeReporting, Mandatory: true, Platform: "verifactu", Async: false,
		LabelKey: "transmission.verifactu", Icon: "radio"},
	"dian": {Method: entity.MethodClearance, Mandatory: true, Platform: "dian", Async: false,
		LabelKey: "transmission.dian", Icon: "shield-check"},
	"face": {Method: entity.MethodB2GPortal, Mandatory: true, Platform: "face", Async: true,
		LabelKey: "transmission.face", Icon: "landmark"},
	EmailPlatform: {Method: entity.MethodEmail, Mandatory: false, Platform: EmailPlatform, Async: false,
		LabelKey: "transmission.email", Icon: "mail"},
}

// PlatformRule tupla canónica de la plataforma. Una plataforma desconocida devuelve la
// tupla de email con known=false.
func PlatformRule(name string) (rule entity.TransmissionRule, known bool) {
	if r, ok := platformTable[name]; ok {
		return r, true
	}
	return platformTable[EmailPlatform], false
}

// PlatformNames plataformas conocidas, ordenadas.
func PlatformNames() []string {
	names := make([]string, 0, len(platformTable))
	for n := range platformTable {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
