package cnrc

// SubmitPFDRequest represents a request to submit a PayForData transaction.
type SubmitPFDRequest struct {
	NamespaceID string `json:"namespace_id"`
	Data        string `json:"data"`
	GasLimit    uint64 `json:"gas_limit"`
}

// Types below mirror the JSON returned by celestia-node (or cosmos-sdk dependency of celestia node, to be precise).
// Only the fields needed to judge a submission are kept.

// TxResponse defines a structure containing relevant tx data and metadata.
type TxResponse struct {
	// The block height
	Height int64 `json:"height,omitempty"`
	// The transaction hash.
	TxHash string `json:"txhash,omitempty"`
	// Namespace for the Code
	Codespace string `json:"codespace,omitempty"`
	// Response code.
	Code uint32 `json:"code,omitempty"`
	// Result bytes, if any.
	Data string `json:"data,omitempty"`
	// The output of the application's logger (raw string). May be
	// non-deterministic.
	RawLog string `json:"raw_log,omitempty"`
	// Additional information. May be non-deterministic.
	Info string `json:"info,omitempty"`
	// Amount of gas requested for transaction.
	GasWanted int64 `json:"gas_wanted,omitempty"`
	// Amount of gas consumed by transaction.
	GasUsed int64 `json:"gas_used,omitempty"`
	// Time of the block containing the transaction.
	Timestamp string `json:"timestamp,omitempty"`
}

// NamespacedDataResponse is returned by the /namespaced_data endpoint.
type NamespacedDataResponse struct {
	Data   [][]byte `json:"data"`
	Height uint64   `json:"height"`
}
