package model

// SchemaVersion is stamped into schema_meta by init-db.
const SchemaVersion = "3"

// All lists every table in migration order.
func All() []any {
	return []any{
		&Plant{},
		&ProductionLine{},
		&WorkCenter{},
		&Asset{},
		&Product{},
		&Vendor{},
		&User{},
		&Node{},
		&GenealogyEdge{},
		&Assembly{},
		&ProductionRecord{},
		&ProductionRecordWelder{},
		&QueueItem{},
		&QueueTransaction{},
		&Defect{},
		&Annotation{},
		&KVEntry{},
		&SchemaMeta{},
	}
}
