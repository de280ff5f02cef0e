package postgresql

// migrations returns the ordered schema migrations for the intent pipeline
// tables.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id UUID PRIMARY KEY,
				organization_id TEXT NOT NULL,
				name TEXT NOT NULL,
				status TEXT NOT NULL,
				created_by TEXT NOT NULL DEFAULT '',
				workflow_data JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_org ON workflows (organization_id);
			CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows (status) WHERE deleted_at IS NULL;

			CREATE TABLE IF NOT EXISTS keywords (
				id UUID PRIMARY KEY,
				organization_id TEXT NOT NULL,
				workflow_id UUID NOT NULL REFERENCES workflows (id),
				keyword TEXT NOT NULL,
				kind TEXT NOT NULL DEFAULT 'seed',
				search_volume INTEGER NOT NULL DEFAULT 0,
				difficulty DOUBLE PRECISION NOT NULL DEFAULT 0,
				competition DOUBLE PRECISION NOT NULL DEFAULT 0,
				subtopics JSONB NOT NULL DEFAULT '[]'::jsonb,
				subtopics_status TEXT NOT NULL DEFAULT 'not_started',
				article_status TEXT NOT NULL DEFAULT 'not_started',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_keywords_workflow ON keywords (workflow_id);

			CREATE TABLE IF NOT EXISTS topic_clusters (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows (id),
				hub_keyword_id UUID NOT NULL,
				spoke_keyword_id UUID NOT NULL,
				similarity_score DOUBLE PRECISION,
				valid BOOLEAN,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_clusters_workflow_hub ON topic_clusters (workflow_id, hub_keyword_id);

			CREATE TABLE IF NOT EXISTS approvals (
				entity_id TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				approval_type TEXT NOT NULL,
				decision TEXT NOT NULL,
				approver_id TEXT NOT NULL DEFAULT '',
				feedback TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (entity_id, entity_type, approval_type)
			);

			CREATE TABLE IF NOT EXISTS audit_log (
				id UUID PRIMARY KEY,
				organization_id TEXT NOT NULL,
				workflow_id TEXT NOT NULL DEFAULT '',
				entity_type TEXT NOT NULL,
				entity_id TEXT NOT NULL,
				actor_id TEXT NOT NULL,
				action TEXT NOT NULL,
				details JSONB NOT NULL DEFAULT '{}'::jsonb,
				ip_address TEXT NOT NULL DEFAULT '',
				user_agent TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_audit_workflow ON audit_log (workflow_id, created_at DESC);
		`,
	}
}
