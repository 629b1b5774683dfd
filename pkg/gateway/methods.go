package gateway

import (
	"context"

	"github.com/harun/mnemo/pkg/memory"
)

const maxListLimit = 100

// registerBuiltinMethods registers all memory RPC methods
func (s *Server) registerBuiltinMethods() {
	_ = s.router.RegisterMethod("memory.add", s.handleMemoryAdd)
	_ = s.router.RegisterMethod("memory.add_batch", s.handleMemoryAddBatch)
	_ = s.router.RegisterMethod("memory.update", s.handleMemoryUpdate)
	_ = s.router.RegisterMethod("memory.delete", s.handleMemoryDelete)
	_ = s.router.RegisterMethod("memory.get", s.handleMemoryGet)
	_ = s.router.RegisterMethod("memory.list", s.handleMemoryList)
	_ = s.router.RegisterMethod("memory.search", s.handleMemorySearch)
	_ = s.router.RegisterMethod("memory.related", s.handleMemoryRelated)
	_ = s.router.RegisterMethod("memory.status", s.handleMemoryStatus)

	if s.importer != nil {
		_ = s.router.RegisterMethod("memory.import", s.handleMemoryImport)
	}
}

func (s *Server) handleMemoryAdd(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	rec, err := s.service.Add(ctx, memory.AddParams{
		Content: stringParam(params, "content"),
		Project: stringParam(params, "project"),
		Tags:    stringSliceParam(params, "tags"),
	})
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast("memory.added", rec)
	return rec, nil
}

func (s *Server) handleMemoryAddBatch(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	items, _ := params["items"].([]interface{})
	batch := make([]memory.AddParams, 0, len(items))
	for _, item := range items {
		m, _ := item.(map[string]interface{})
		batch = append(batch, memory.AddParams{
			Content: stringParam(m, "content"),
			Project: stringParam(m, "project"),
			Tags:    stringSliceParam(m, "tags"),
		})
	}

	records, err := s.service.AddBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast("memory.batch_added", map[string]interface{}{
		"count": len(records),
	})
	return records, nil
}

func (s *Server) handleMemoryUpdate(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	update := memory.UpdateParams{}
	if content, ok := params["content"].(string); ok {
		update.Content = &content
	}
	if project, ok := params["project"].(string); ok {
		update.Project = &project
	}
	if _, ok := params["tags"]; ok {
		update.Tags = stringSliceParam(params, "tags")
		update.SetTags = true
	}

	rec, err := s.service.Update(ctx, stringParam(params, "id"), update)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast("memory.updated", rec)
	return rec, nil
}

func (s *Server) handleMemoryDelete(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	id := stringParam(params, "id")
	if err := s.service.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast("memory.deleted", map[string]interface{}{"id": id})
	return map[string]interface{}{"deleted": true, "id": id}, nil
}

func (s *Server) handleMemoryGet(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return s.service.Get(ctx, stringParam(params, "id"))
}

func (s *Server) handleMemoryList(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	limit := intParam(params, "limit", maxListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := s.service.List(ctx, memory.FilterOptions{
		Project: stringParam(params, "project"),
		Tags:    stringSliceParam(params, "tags"),
		Limit:   limit,
		Offset:  intParam(params, "offset", 0),
	})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []memory.Memory{}
	}
	return records, nil
}

func (s *Server) handleMemorySearch(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	boost := true
	if b, ok := params["boostFrequent"].(bool); ok {
		boost = b
	}

	results, err := s.retriever.Search(ctx, stringParam(params, "query"), memory.SearchOptions{
		Limit:         intParam(params, "limit", 0),
		BoostFrequent: boost,
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Server) handleMemoryRelated(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	boost := true
	if b, ok := params["boostFrequent"].(bool); ok {
		boost = b
	}

	results, err := s.retriever.Related(ctx, stringParam(params, "id"), memory.SearchOptions{
		Limit:         intParam(params, "limit", 0),
		BoostFrequent: boost,
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Server) handleMemoryStatus(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	status, err := s.service.Status(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status":      status,
		"clients":     s.clients.GetConnectedClients(),
		"clientCount": s.clients.Count(),
		"methods":     s.router.GetMethods(),
	}, nil
}

func (s *Server) handleMemoryImport(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	stats, err := s.importer.Sync(ctx)
	if err != nil {
		return nil, err
	}

	s.broadcaster.Broadcast("memory.imported", stats)
	return stats, nil
}

func stringParam(params map[string]interface{}, key string) string {
	v, _ := params[key].(string)
	return v
}

func intParam(params map[string]interface{}, key string, def int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func stringSliceParam(params map[string]interface{}, key string) []string {
	raw, ok := params[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
