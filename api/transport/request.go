package transport

// CustomerCreateRequest carries the creation attributes for a customer.
// ProductIDs may reference existing products; they are linked atomically.
type CustomerCreateRequest struct {
	ID         string   `json:"id"`
	FirstName  string   `json:"first_name"`
	LastName   string   `json:"last_name"`
	Phone      string   `json:"phone"`
	Country    string   `json:"country"`
	CityID     string   `json:"city_id"`
	Address    string   `json:"address"`
	Role       string   `json:"role"`
	ProductIDs []string `json:"product_ids"`
	OrderIDs   []string `json:"order_ids"`
}

// CustomerUpdateRequest updates profile fields. Absent fields stay untouched;
// ExpectedVersion, when positive, enables the optimistic concurrency check.
type CustomerUpdateRequest struct {
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Phone           *string `json:"phone"`
	Country         string  `json:"country"`
	CityID          *string `json:"city_id"`
	Address         *string `json:"address"`
	Role            *string `json:"role"`
	ExpectedVersion int64   `json:"expected_version"`
}

type ProductCreateRequest struct {
	ID            string   `json:"id"`
	Brand         string   `json:"brand"`
	Model         string   `json:"model"`
	SerialID      string   `json:"serial_id"`
	OwnerID       string   `json:"owner_id"`
	DealerID      string   `json:"dealer_id"`
	OrderIDs      []string `json:"order_ids"`
	PurchaseDate  string   `json:"purchase_date"`
	WarrantyUntil string   `json:"warranty_until"`
}

type ProductUpdateRequest struct {
	Brand           *string `json:"brand"`
	Model           *string `json:"model"`
	SerialID        *string `json:"serial_id"`
	PurchaseDate    *string `json:"purchase_date"`
	WarrantyUntil   *string `json:"warranty_until"`
	ExpectedVersion int64   `json:"expected_version"`
}

// LinkRequest targets one related id (product on a customer, order on either
// aggregate, owner/dealer on a product).
type LinkRequest struct {
	ID              string `json:"id"`
	ExpectedVersion int64  `json:"expected_version"`
}

type UnrepairableRequest struct {
	Reason          string `json:"reason"`
	ExpectedVersion int64  `json:"expected_version"`
}

type VersionedRequest struct {
	ExpectedVersion int64 `json:"expected_version"`
}

// ProductUpsertRequest is the bulk upsert body.
type ProductUpsertRequest struct {
	Items []ProductUpsertItem `json:"items"`
}

type ProductUpsertItem struct {
	ProductCreateRequest
	ExpectedVersion int64 `json:"expected_version"`
}
