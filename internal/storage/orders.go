package storage

// Order is a production order as the planner sees it. WorkedQuantity is
// written by the production-floor portal and is read-only here.
type Order struct {
	UUID           string  `json:"uuid"`
	Number         string  `json:"number"`
	Quantity       float64 `json:"quantity"`
	WorkedQuantity float64 `json:"worked_quantity"`
	Status         string  `json:"status"`
	ArticleUUID    string  `json:"article_uuid"`
	OfferUUID      string  `json:"offer_uuid"`
	WorkLineUUID   string  `json:"lasworkline_uuid"`
}

// Remaining is the quantity still to produce, floored at zero.
func (o *Order) Remaining() float64 {
	r := o.Quantity - o.WorkedQuantity
	if r < 0 {
		return 0
	}
	return r
}

type Offer struct {
	UUID         string  `json:"uuid"`
	Piece        float64 `json:"piece"`
	WorkLineUUID string  `json:"lasworkline_uuid"`
}

// OfferOperation is one timed row of an offer's operation list, already
// joined to its operation and filtered to non-removed ones.
type OfferOperation struct {
	OperationSeconds float64 `json:"secondi_operazione"`
	NumOp            float64 `json:"num_op"`
}
