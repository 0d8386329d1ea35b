package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE ingestion_runs (
				id UUID PRIMARY KEY,
				namespace VARCHAR(255) NOT NULL,
				workflow_name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('pending', 'running', 'succeeded', 'failed')),
				dataset_id VARCHAR(255),
				error TEXT,
				artifact_count INTEGER NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_ingestion_runs_workflow ON ingestion_runs(namespace, workflow_name);
			CREATE INDEX idx_ingestion_runs_status ON ingestion_runs(status);
			CREATE INDEX idx_ingestion_runs_created_at ON ingestion_runs(created_at);
		`,
	}
}
