package core

import lru "github.com/hashicorp/golang-lru/v2"

// ContractCache is a bounded probe cache for contract bodies and
// document-type schemas read repeatedly within a single batch lowering
// (e.g. re-probing the same contract across many UpsertDocument
// intents). It is reworked from the teacher's hand-rolled disk LRU into
// hashicorp/golang-lru, matching how the rest of the example pack
// reaches for that library instead of rolling one.
type ContractCache struct {
	contracts *lru.Cache[Identifier, []byte]
	schemas   *lru.Cache[string, DocumentTypeSchema]
}

// NewContractCache builds a cache holding up to size contract bodies and
// size schemas.
func NewContractCache(size int) (*ContractCache, error) {
	contracts, err := lru.New[Identifier, []byte](size)
	if err != nil {
		return nil, err
	}
	schemas, err := lru.New[string, DocumentTypeSchema](size)
	if err != nil {
		return nil, err
	}
	return &ContractCache{contracts: contracts, schemas: schemas}, nil
}

func schemaCacheKey(contractID Identifier, documentType string) string {
	return contractID.Hex() + "/" + documentType
}

// GetContract returns a cached contract body, if any.
func (c *ContractCache) GetContract(id Identifier) ([]byte, bool) {
	return c.contracts.Get(id)
}

// PutContract caches a contract body.
func (c *ContractCache) PutContract(id Identifier, body []byte) {
	c.contracts.Add(id, body)
}

// GetSchema returns a cached document-type schema, if any.
func (c *ContractCache) GetSchema(contractID Identifier, documentType string) (DocumentTypeSchema, bool) {
	return c.schemas.Get(schemaCacheKey(contractID, documentType))
}

// PutSchema caches a document-type schema.
func (c *ContractCache) PutSchema(contractID Identifier, documentType string, schema DocumentTypeSchema) {
	c.schemas.Add(schemaCacheKey(contractID, documentType), schema)
}

// InvalidateContract drops a cached contract body. It does not track
// which schema entries derived from it (the cache is a probe cache, not
// a source of truth); callers that mutate a contract should call
// PutContract again with the new body, or rely on LRU eviction.
func (c *ContractCache) InvalidateContract(id Identifier) {
	c.contracts.Remove(id)
}
