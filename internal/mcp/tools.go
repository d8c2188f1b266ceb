package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerTools declares the complete tool surface. Input schemas are
// inferred from the parameter structs.
func (s *Server) registerTools() {
	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "ping",
		Description: "Check if the server is running",
	}, s.handlePing)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "entity_create",
		Description: "Create a new entity (decision, task, note, prompt, component, or link)",
	}, s.handleEntityCreate)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "entity_get",
		Description: "Get an entity by ID (sequence number like '1' or hex id prefix like 'abc123')",
	}, s.handleEntityGet)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "entity_list",
		Description: "List entities with optional filters by type, status, tag, with pagination",
	}, s.handleEntityList)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "entity_update",
		Description: "Update an existing entity's title, content, tags, or properties",
	}, s.handleEntityUpdate)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "entity_delete",
		Description: "Delete an entity by ID, removing every relation that mentions it",
	}, s.handleEntityDelete)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "entity_batch",
		Description: "Execute multiple entity operations in a batch. Operations run sequentially with best-effort semantics.",
	}, s.handleEntityBatch)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "search_fulltext",
		Description: "Full-text search across entities via SQLite FTS5. Supports type:, status:, tag:, created:> and created:< query prefixes.",
	}, s.handleSearchFulltext)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "graph_relations",
		Description: "Get relations for an entity (outgoing, incoming, or both)",
	}, s.handleGraphRelations)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "graph_path",
		Description: "Find the shortest path between two entities using BFS traversal",
	}, s.handleGraphPath)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "graph_orphans",
		Description: "Find entities with no incoming or outgoing relations",
	}, s.handleGraphOrphans)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "task_ready",
		Description: "List tasks that are ready to work on (no unresolved blockers), sorted by priority (urgent > high > normal > low), then by due date",
	}, s.handleTaskReady)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "task_blocked",
		Description: "List blocked tasks with their blockers. Optionally get blockers for a specific task by ID.",
	}, s.handleTaskBlocked)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "task_next",
		Description: "Get the single highest-priority task that is ready to work on",
	}, s.handleTaskNext)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "task_complete",
		Description: "Mark a task as done",
	}, s.handleTaskComplete)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "task_reschedule",
		Description: "Change a task's due date (YYYY-MM-DD)",
	}, s.handleTaskReschedule)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "decision_supersede",
		Description: "Replace a decision with a new one. Updates the old decision's status to 'superseded' and creates a 'supersedes' relation.",
	}, s.handleDecisionSupersede)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "relation_create",
		Description: "Create a relation between two entities. Valid relation types: implements, blocks, supersedes, references, belongs_to, documents",
	}, s.handleRelationCreate)

	sdkmcp.AddTool(s.sdk, &sdkmcp.Tool{
		Name:        "relation_delete",
		Description: "Delete a relation between two entities. Specify source, target, and relation type.",
	}, s.handleRelationDelete)
}

// PingParams is empty; ping is a liveness probe.
type PingParams struct{}

func (s *Server) handlePing(ctx context.Context, req *sdkmcp.CallToolRequest, params PingParams) (*sdkmcp.CallToolResult, any, error) {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: "pong"}},
	}, nil, nil
}
