package domain

import "github.com/google/uuid"

// Identifier value types. Each is an opaque value compared by its underlying
// string; the zero value means "absent".

type CustomerID string

type ProductID string

type OrderID string

type CentreID string

type AppUserID string

func NewCustomerID() CustomerID { return CustomerID(uuid.NewString()) }

func NewProductID() ProductID { return ProductID(uuid.NewString()) }

func (id CustomerID) IsZero() bool { return id == "" }
func (id CustomerID) String() string { return string(id) }

func (id ProductID) IsZero() bool { return id == "" }
func (id ProductID) String() string { return string(id) }

func (id OrderID) IsZero() bool { return id == "" }
func (id OrderID) String() string { return string(id) }

func (id CentreID) IsZero() bool { return id == "" }
func (id CentreID) String() string { return string(id) }

func (id AppUserID) IsZero() bool { return id == "" }
func (id AppUserID) String() string { return string(id) }
