package coinbase

// subscribeRequest opens the level2 channel for one product.
type subscribeRequest struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// message is the envelope of every Coinbase frame. The type discriminator
// selects which fields are populated: "snapshot" carries bids/asks,
// "l2update" carries changes as [side, price, size] tuples, and
// "subscriptions"/"error" are control frames.
type message struct {
	Type      string     `json:"type"`
	ProductID string     `json:"product_id"`
	Message   string     `json:"message"`
	Reason    string     `json:"reason"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`
	Changes   [][]string `json:"changes"`
}
