package procurement

import (
	"quoteflow/internal/catalog"
	"quoteflow/internal/rfq"
)

// Handler holds dependencies for procurement handlers.
type Handler struct {
	RFQs    *rfq.Service
	Catalog *catalog.Service
}
