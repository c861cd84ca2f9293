package tools

// Definitions returns the tool schemas in the wire-neutral function
// format the LLM client converts at the provider boundary. Order is
// fixed so prompts are reproducible.
func Definitions() []map[string]any {
	defs := []struct {
		name        string
		description string
		parameters  map[string]any
	}{
		{
			name:        "create_task",
			description: "Create a new task in the heartbeat queue. Use when the operator asks you to track something, add a to-do, or when you identify an action item.",
			parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task": map[string]any{
						"type":        "string",
						"description": "Short task title",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Detailed description",
					},
					"category": map[string]any{
						"type": "string",
						"enum": []string{"dev", "health", "business", "ops", "brand", "general"},
					},
					"priority": map[string]any{
						"type":        "number",
						"description": "1-10 (1=critical). Default 5.",
					},
				},
				"required": []string{"task", "category"},
			},
		},
		{
			name:        "update_task",
			description: "Update status of an existing task. Use when the operator says something is done, in progress, or should be cancelled.",
			parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_name": map[string]any{
						"type":        "string",
						"description": "Task title to search (partial match)",
					},
					"status": map[string]any{
						"type": "string",
						"enum": []string{"pending", "in_progress", "completed", "failed"},
					},
					"result": map[string]any{
						"type":        "string",
						"description": "Result or notes",
					},
				},
				"required": []string{"task_name", "status"},
			},
		},
		{
			name:        "save_memory",
			description: "Save to persistent memory. Use when the operator says 'remember this', shares a preference/decision, or provides info worth retaining.",
			parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": map[string]any{
						"type":        "string",
						"description": "Short identifier (snake_case)",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "The information to remember",
					},
					"memory_type": map[string]any{
						"type": "string",
						"enum": []string{"core_memory", "decision", "skill", "preference", "knowledge"},
					},
					"importance": map[string]any{
						"type":        "number",
						"description": "1-10 (10=critical). Default 5.",
					},
					"tags": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required": []string{"key", "content", "memory_type"},
			},
		},
		{
			name:        "list_tasks",
			description: "List tasks from the heartbeat queue.",
			parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"status_filter": map[string]any{
						"type": "string",
						"enum": []string{"all", "pending", "in_progress", "completed"},
					},
				},
			},
		},
		{
			name:        "search_memories",
			description: "Search persistent memories by key or content.",
			parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search term",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			name:        "check_cost",
			description: "Check actual spend from the cost ledger. Use when the operator asks about costs or budget, or proactively if the conversation has been long.",
			parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"period": map[string]any{
						"type":        "string",
						"enum":        []string{"today", "week", "all"},
						"description": "Time period to check. Default: today.",
					},
				},
			},
		},
	}

	out := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        d.name,
				"description": d.description,
				"parameters":  d.parameters,
			},
		})
	}
	return out
}
