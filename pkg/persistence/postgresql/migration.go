package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				workspace_id VARCHAR(255),
				name VARCHAR(255) NOT NULL,
				description TEXT,
				nodes JSONB NOT NULL,
				edges JSONB NOT NULL,
				execution_order JSONB,
				variables JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_workspace ON workflows(workspace_id);

			CREATE TABLE workflow_executions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				record_id VARCHAR(255),
				status VARCHAR(50) NOT NULL,
				current_node_id VARCHAR(255),
				next_node_id VARCHAR(255),
				context JSONB NOT NULL,
				error TEXT,
				error_node_id VARCHAR(255),
				is_dry_run BOOLEAN NOT NULL DEFAULT FALSE,
				paused_at TIMESTAMP WITH TIME ZONE,
				resume_at TIMESTAMP WITH TIME ZONE,
				wait_event_type VARCHAR(255),
				wait_timeout_at TIMESTAMP WITH TIME ZONE,
				wait_kind VARCHAR(50),
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_executions_workflow ON workflow_executions(workflow_id);
			CREATE INDEX idx_executions_status ON workflow_executions(status);
			CREATE INDEX idx_executions_resume_at ON workflow_executions(resume_at)
				WHERE status = 'paused';

			CREATE TABLE workflow_execution_steps (
				id UUID PRIMARY KEY,
				execution_id UUID NOT NULL REFERENCES workflow_executions(id),
				node_id VARCHAR(255) NOT NULL,
				node_type VARCHAR(50) NOT NULL,
				node_label VARCHAR(255),
				status VARCHAR(50) NOT NULL,
				input JSONB,
				output JSONB,
				condition_result BOOLEAN,
				selected_branch VARCHAR(255),
				error TEXT,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				duration_ms BIGINT NOT NULL DEFAULT 0,
				seq BIGSERIAL
			);

			CREATE INDEX idx_steps_execution ON workflow_execution_steps(execution_id, seq);
		`,
		2: `
			CREATE TABLE warming_schedules (
				id UUID PRIMARY KEY,
				workspace_id VARCHAR(255),
				name VARCHAR(255) NOT NULL,
				is_system BOOLEAN NOT NULL DEFAULT FALSE,
				steps JSONB NOT NULL,
				max_bounce_rate DOUBLE PRECISION NOT NULL,
				max_complaint_rate DOUBLE PRECISION NOT NULL,
				min_delivery_rate DOUBLE PRECISION NOT NULL,
				auto_pause_on_threshold BOOLEAN NOT NULL DEFAULT TRUE,
				auto_adjust_volume BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE sending_domains (
				id UUID PRIMARY KEY,
				workspace_id VARCHAR(255),
				domain VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				warming_status VARCHAR(50) NOT NULL,
				warming_day INTEGER NOT NULL DEFAULT 0,
				warming_schedule_id UUID,
				daily_limit INTEGER NOT NULL DEFAULT 0,
				daily_sent INTEGER NOT NULL DEFAULT 0,
				health_score INTEGER NOT NULL DEFAULT 100,
				health_status VARCHAR(50) NOT NULL DEFAULT 'excellent',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_domains_warming_status ON sending_domains(warming_status);
			CREATE INDEX idx_domains_status ON sending_domains(status);

			CREATE TABLE warming_progress (
				id UUID PRIMARY KEY,
				domain_id UUID NOT NULL REFERENCES sending_domains(id) ON DELETE CASCADE,
				day INTEGER NOT NULL,
				target_volume INTEGER NOT NULL DEFAULT 0,
				actual_volume INTEGER NOT NULL DEFAULT 0,
				sent INTEGER NOT NULL DEFAULT 0,
				delivered INTEGER NOT NULL DEFAULT 0,
				bounced INTEGER NOT NULL DEFAULT 0,
				complaints INTEGER NOT NULL DEFAULT 0,
				delivery_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
				bounce_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
				complaint_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
				threshold_exceeded BOOLEAN NOT NULL DEFAULT FALSE,
				ai_recommendation TEXT,
				completed BOOLEAN NOT NULL DEFAULT FALSE,
				date TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (domain_id, day)
			);

			CREATE TABLE domain_health (
				id UUID PRIMARY KEY,
				domain_id UUID NOT NULL REFERENCES sending_domains(id) ON DELETE CASCADE,
				date DATE NOT NULL,
				stats JSONB NOT NULL,
				health_score INTEGER NOT NULL,
				health_status VARCHAR(50) NOT NULL,
				score_factors JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (domain_id, date)
			);

			CREATE TABLE isp_metrics (
				id UUID PRIMARY KEY,
				domain_id UUID NOT NULL REFERENCES sending_domains(id) ON DELETE CASCADE,
				isp VARCHAR(100) NOT NULL,
				date DATE NOT NULL,
				stats JSONB NOT NULL,
				health_score INTEGER NOT NULL,
				health_status VARCHAR(50) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (domain_id, isp, date)
			);

			CREATE TABLE daily_stats (
				domain_id UUID NOT NULL,
				isp VARCHAR(100) NOT NULL DEFAULT 'total',
				date DATE NOT NULL,
				stats JSONB NOT NULL,
				PRIMARY KEY (domain_id, isp, date)
			);
		`,
	}
}
