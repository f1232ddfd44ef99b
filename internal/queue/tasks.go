package queue

const (
	TypeContractIngest  = "contract:ingest"
	TypeContractRefresh = "contract:refresh"
)

type ContractIngestPayload struct {
	DocumentID string `json:"document_id"`
	TenantID   string `json:"tenant_id"`
}
