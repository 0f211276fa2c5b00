package visitor

// BlacklistRequest toggles the blacklist flag on a visitor. Setting it
// cascades a bulk cancellation over the visitor's pending and future visits.
type BlacklistRequest struct {
	IsBlacklisted bool   `json:"is_blacklisted"`
	Reason        string `json:"reason"`
}
