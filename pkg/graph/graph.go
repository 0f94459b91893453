// Package graph provides topology utilities for workflow definitions:
// topological ordering, downstream closure and order validation.
package graph

import (
	"errors"
	"fmt"

	"github.com/sendloop/sendloop/pkg/models"
)

// ErrCycle is returned when the node graph contains a cycle.
var ErrCycle = errors.New("workflow graph contains a cycle")

// TopologicalOrder computes a Kahn's-algorithm ordering of the graph.
// Edges referencing unknown nodes are rejected.
func TopologicalOrder(nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string, len(nodes))

	for _, node := range nodes {
		inDegree[node.ID] = 0
	}

	for _, edge := range edges {
		if _, ok := inDegree[edge.Source]; !ok {
			return nil, fmt.Errorf("edge %s references unknown source node %s", edge.ID, edge.Source)
		}

		if _, ok := inDegree[edge.Target]; !ok {
			return nil, fmt.Errorf("edge %s references unknown target node %s", edge.ID, edge.Target)
		}

		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		inDegree[edge.Target]++
	}

	// Seed the queue in node declaration order so the result is stable.
	queue := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if inDegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	order := make([]string, 0, len(nodes))

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, next := range adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, ErrCycle
	}

	return order, nil
}

// DownstreamClosure returns the transitive set of nodes reachable from the
// given start nodes, including the start nodes themselves. Used to skip
// whole subtrees when a condition or branch rules them out.
func DownstreamClosure(edges []*models.WorkflowEdge, starts []string) []string {
	adjacency := make(map[string][]string)
	for _, edge := range edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	visited := make(map[string]bool, len(starts))
	queue := make([]string, 0, len(starts))

	for _, start := range starts {
		if !visited[start] {
			visited[start] = true
			queue = append(queue, start)
		}
	}

	closure := make([]string, 0, len(queue))

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		closure = append(closure, current)

		for _, next := range adjacency[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	return closure
}

// ValidOrder reports whether a cached execution order still matches the
// graph: every node exactly once, every edge source preceding its target.
func ValidOrder(order []string, nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) bool {
	if len(order) != len(nodes) {
		return false
	}

	position := make(map[string]int, len(order))

	for i, id := range order {
		if _, seen := position[id]; seen {
			return false
		}

		position[id] = i
	}

	for _, node := range nodes {
		if _, ok := position[node.ID]; !ok {
			return false
		}
	}

	for _, edge := range edges {
		source, sok := position[edge.Source]
		target, tok := position[edge.Target]

		if !sok || !tok || source >= target {
			return false
		}
	}

	return true
}
