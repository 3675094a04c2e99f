package entity

// TransactionType tipo de operación según el cliente.
type TransactionType string

const (
	TransactionB2B TransactionType = "B2B"
	TransactionB2G TransactionType = "B2G"
	TransactionB2C TransactionType = "B2C"
)

// TransactionNature naturaleza de lo facturado.
type TransactionNature string

const (
	NatureGoods    TransactionNature = "goods"
	NatureServices TransactionNature = "services"
	NatureMixed    TransactionNature = "mixed"
)

// SupplierContext hechos del emisor.
type SupplierContext struct {
	CountryCode     string `json:"countryCode"`
	VATNumber       string `json:"vatNumber,omitempty"`
	IsVATRegistered bool   `json:"isVatRegistered"`
	IsEU            bool   `json:"isEU"`
}

// CustomerContext hechos del cliente.
type CustomerContext struct {
	CountryCode     string `json:"countryCode"`
	VATNumber       string `json:"vatNumber,omitempty"`
	IsVATRegistered bool   `json:"isVatRegistered"`
	IsPublicEntity  bool   `json:"isPublicEntity"`
	IsEU            bool   `json:"isEU"`
}

// TransactionFacts clasificación de la operación.
type TransactionFacts struct {
	Type       TransactionType   `json:"type"`
	Nature     TransactionNature `json:"nature"`
	IsDomestic bool              `json:"isDomestic"`
	IsIntraEU  bool              `json:"isIntraEU"`
	IsExport   bool              `json:"isExport"`
}

// PlaceContext lugares de entrega, prestación y tributación (códigos ISO).
type PlaceContext struct {
	Delivery    string `json:"delivery"`
	Performance string `json:"performance"`
	Taxation    string `json:"taxation"`
}

// TransactionContext hechos normalizados de una operación. Se construye una vez y se
// pasa por valor: no se modifica tras la construcción.
type TransactionContext struct {
	Supplier    SupplierContext  `json:"supplier"`
	Customer    CustomerContext  `json:"customer"`
	Transaction TransactionFacts `json:"transaction"`
	Place       PlaceContext     `json:"place"`
}

// IsB2BLike B2B o B2G.
func (tc TransactionContext) IsB2BLike() bool {
	return tc.Transaction.Type == TransactionB2B || tc.Transaction.Type == TransactionB2G
}

// Lookup resuelve las rutas conocidas por las condiciones de menciones legales.
func (tc TransactionContext) Lookup(path string) (any, bool) {
	switch path {
	case "supplier.countryCode":
		return tc.Supplier.CountryCode, true
	case "supplier.vatNumber":
		return tc.Supplier.VATNumber, true
	case "supplier.isVatRegistered":
		return tc.Supplier.IsVATRegistered, true
	case "supplier.isEU":
		return tc.Supplier.IsEU, true
	case "customer.countryCode":
		return tc.Customer.CountryCode, true
	case "customer.vatNumber":
		return tc.Customer.VATNumber, true
	case "customer.isVatRegistered":
		return tc.Customer.IsVATRegistered, true
	case "customer.isPublicEntity":
		return tc.Customer.IsPublicEntity, true
	case "customer.isEU":
		return tc.Customer.IsEU, true
	case "transaction.type":
		return string(tc.Transaction.Type), true
	case "transaction.nature":
		return string(tc.Transaction.Nature), true
	case "transaction.isDomestic":
		return tc.Transaction.IsDomestic, true
	case "transaction.isIntraEU":
		return tc.Transaction.IsIntraEU, true
	case "transaction.isExport":
		return tc.Transaction.IsExport, true
	case "place.delivery":
		return tc.Place.Delivery, true
	case "place.performance":
		return tc.Place.Performance, true
	case "place.taxation":
		return tc.Place.Taxation, true
	default:
		return nil, false
	}
}
