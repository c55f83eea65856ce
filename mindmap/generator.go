// Package mindmap implements the mind-map generator (§4.13): asking a
// model for a tree of discussion points and materializing it as a
// validated MindMap document.
package mindmap

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-ai/conclave/llms"
	"github.com/conclave-ai/conclave/meeting"
)

const promptTemplate = `Analyze the meeting transcript and return a JSON object of the form:
{"discussion_points": [{"content": "...", "agenda_title": "...", "message_ids": ["..."], "sub_points": [...]}]}
Each discussion point may nest further points under "sub_points" (up to one level deep).
Respond with JSON only.`

type discussionPoint struct {
	Content     string            `json:"content"`
	AgendaTitle string            `json:"agenda_title"`
	MessageIDs  []string          `json:"message_ids"`
	SubPoints   []discussionPoint `json:"sub_points"`
}

type discussionPoints struct {
	DiscussionPoints []discussionPoint `json:"discussion_points"`
}

// Generate invokes generator's model adapter, builds the §4.13 tree, and
// stores it on m. m is mutated in place; the caller persists it.
func Generate(ctx context.Context, provider llms.Provider, m *meeting.Meeting, generator meeting.Agent) (*meeting.MindMap, error) {
	transcript := renderTranscript(m)
	comp, err := provider.Complete(ctx, promptTemplate, []llms.Turn{{Role: llms.RoleUser, Content: transcript}}, llms.Params{})

	var points []discussionPoint
	if err == nil {
		points, err = parsePoints(comp.Content)
	}
	// A model or parse failure falls back to a minimal root+agenda tree
	// rather than surfacing an error, per §4.13 step 5.
	if err != nil {
		points = nil
	}

	mm := buildTree(m, points, generator.ID)
	m.MindMap = mm
	m.UpdatedAt = time.Now()
	return mm, nil
}

func renderTranscript(m *meeting.Meeting) string {
	var b strings.Builder
	for _, msg := range m.Messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", msg.ID, msg.SpeakerName, msg.Content)
	}
	return b.String()
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parsePoints does a strict-then-lenient two-pass parse: first a direct
// json.Unmarshal of the full response, then (on failure) extraction of
// the largest brace-delimited substring before giving up.
func parsePoints(raw string) ([]discussionPoint, error) {
	var parsed discussionPoints
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		return parsed.DiscussionPoints, nil
	}

	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return nil, fmt.Errorf("no JSON object found in mind-map response")
	}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return nil, fmt.Errorf("mind-map response is not valid JSON: %w", err)
	}
	return parsed.DiscussionPoints, nil
}

func newNode(content string, level int, parentID *string) *meeting.MindMapNode {
	return &meeting.MindMapNode{
		ID:       uuid.NewString(),
		Content:  content,
		Level:    level,
		ParentID: parentID,
	}
}

func attach(nodes map[string]*meeting.MindMapNode, parent, child *meeting.MindMapNode) {
	nodes[child.ID] = child
	parent.ChildrenIDs = append(parent.ChildrenIDs, child.ID)
}

// buildTree constructs §4.13's tree: a root carrying the topic, one
// level-1 node per agenda item, and discussion points attached to the
// matching agenda node (by title) or the root, recursing into sub_points
// down to level 3; deeper sub_points are dropped.
func buildTree(m *meeting.Meeting, points []discussionPoint, generatorID string) *meeting.MindMap {
	nodes := make(map[string]*meeting.MindMapNode)
	root := newNode(m.Topic, 0, nil)
	nodes[root.ID] = root

	agendaNodes := make(map[string]*meeting.MindMapNode, len(m.Agenda))
	for _, item := range m.Agenda {
		n := newNode(item.Title, 1, nil)
		n.ParentID = &root.ID
		attach(nodes, root, n)
		agendaNodes[item.Title] = n
	}

	existingMessages := make(map[string]bool, len(m.Messages))
	for _, msg := range m.Messages {
		existingMessages[msg.ID] = true
	}

	for _, dp := range points {
		parent := root
		if n, ok := agendaNodes[dp.AgendaTitle]; ok {
			parent = n
		}
		addPoint(nodes, parent, dp, parent.Level+1, existingMessages)
	}

	version := 1
	if m.MindMap != nil {
		version = m.MindMap.Version + 1
	}

	return &meeting.MindMap{
		ID:        uuid.NewString(),
		MeetingID: m.ID,
		RootNode:  root.ID,
		Nodes:     nodes,
		Version:   version,
		CreatedAt: time.Now(),
		CreatedBy: generatorID,
	}
}

func addPoint(nodes map[string]*meeting.MindMapNode, parent *meeting.MindMapNode, dp discussionPoint, level int, existingMessages map[string]bool) {
	n := newNode(dp.Content, level, &parent.ID)
	for _, id := range dp.MessageIDs {
		if existingMessages[id] {
			n.MessageReferences = append(n.MessageReferences, id)
		}
	}
	attach(nodes, parent, n)

	if level >= 3 {
		return
	}
	for _, sub := range dp.SubPoints {
		addPoint(nodes, n, sub, level+1, existingMessages)
	}
}
