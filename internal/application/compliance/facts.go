package compliance

// CompanyFacts datos crudos del emisor tal como los guarda el CRUD de empresas.
type CompanyFacts struct {
	CountryCode     string            `json:"countryCode"`
	VATNumber       string            `json:"vatNumber"`
	IsVATRegistered bool              `json:"isVatRegistered"`
	Identifiers     map[string]string `json:"identifiers,omitempty"`
}

// ClientFacts datos crudos del cliente.
type ClientFacts struct {
	CountryCode    string            `json:"countryCode"`
	VATNumber      string            `json:"vatNumber"`
	IsCompany      bool              `json:"isCompany"`
	IsPublicEntity bool              `json:"isPublicEntity"`
	Identifiers    map[string]string `json:"identifiers,omitempty"`
}

// ItemFacts línea facturada reducida a su tipo.
type ItemFacts struct {
	Type string `json:"type"`
}

// Facts entrada del constructor de contexto.
type Facts struct {
	Company         CompanyFacts `json:"company"`
	Client          ClientFacts  `json:"client"`
	Items           []ItemFacts  `json:"items"`
	DeliveryCountry string       `json:"deliveryCountry,omitempty"`
}

// goodsItemTypes tipos de línea que son bienes físicos.
var goodsItemTypes = map[string]bool{"product": true, "goods": true}
