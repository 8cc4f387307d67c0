package models

// MintPayload describes an on-chain minting call for an external signer.
// It is advisory output: the backend never submits the transaction.
type MintPayload struct {
	Chain           string   `json:"chain"`
	RPCURL          string   `json:"rpc_url"`
	ContractAddress string   `json:"contract_address"`
	FunctionName    string   `json:"function_name"`
	// Args is ordered: [user address, previous hash]
	Args []string `json:"args"`
}
