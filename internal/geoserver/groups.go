package geoserver

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
)

// Layer group documents are handled as generic JSON so a read-modify-write
// keeps every field the map server returned. GeoServer collapses
// single-element lists into objects, hence asList.

func groupPath(ws, group string) string {
	return workspacePath(ws) + "/layergroups/" + url.PathEscape(group)
}

func asList(v interface{}) []interface{} {
	switch v := v.(type) {
	case nil:
		return nil
	case []interface{}:
		return v
	}
	return []interface{}{v}
}

func publishedName(v interface{}) string {
	if m, ok := v.(map[string]interface{}); ok {
		if name, ok := m["name"].(string); ok {
			return name
		}
	}
	return ""
}

type groupDoc struct {
	raw map[string]interface{}
}

func (g groupDoc) body() map[string]interface{} {
	body, _ := g.raw["layerGroup"].(map[string]interface{})
	if body == nil {
		body = map[string]interface{}{}
		g.raw["layerGroup"] = body
	}
	return body
}

func (g groupDoc) published() []interface{} {
	pubs, _ := g.body()["publishables"].(map[string]interface{})
	if pubs == nil {
		return nil
	}
	return asList(pubs["published"])
}

func (g groupDoc) styles() ([]interface{}, bool) {
	styles, _ := g.body()["styles"].(map[string]interface{})
	if styles == nil {
		return nil, false
	}
	return asList(styles["style"]), true
}

func (g groupDoc) set(published, styles []interface{}, hasStyles bool) {
	g.body()["publishables"] = map[string]interface{}{"published": published}
	if hasStyles {
		g.body()["styles"] = map[string]interface{}{"style": styles}
	}
}

func (g groupDoc) indexOf(qualified string) int {
	for i, p := range g.published() {
		if publishedName(p) == qualified {
			return i
		}
	}
	return -1
}

func (c *Client) getGroup(ctx context.Context, ws, group string) (groupDoc, error) {
	var raw map[string]interface{}
	if err := c.get(ctx, groupPath(ws, group), &raw); err != nil {
		return groupDoc{}, err
	}
	return groupDoc{raw: raw}, nil
}

// GroupMembers lists the qualified layer names in a group.
func (c *Client) GroupMembers(ctx context.Context, ws, group string) ([]string, error) {
	doc, err := c.getGroup(ctx, ws, group)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, p := range doc.published() {
		names = append(names, publishedName(p))
	}
	return names, nil
}

// EnsureGroupMember adds qualified to group, creating the group with it as
// the only member when the group does not exist yet.
func (c *Client) EnsureGroupMember(ctx context.Context, ws, group, qualified, title string) error {
	doc, err := c.getGroup(ctx, ws, group)
	if IsNotFound(err) {
		return c.createGroup(ctx, ws, group, qualified, title)
	}
	if err != nil {
		return fmt.Errorf("failed to read layer group %s: %w", group, err)
	}

	if doc.indexOf(qualified) >= 0 {
		return nil
	}
	published := append(doc.published(), map[string]interface{}{"@type": "layer", "name": qualified})
	styles, hasStyles := doc.styles()
	if hasStyles {
		styles = append(styles, "")
	}
	doc.set(published, styles, hasStyles)

	if err := c.sendJSON(ctx, http.MethodPut, groupPath(ws, group), doc.raw); err != nil {
		return fmt.Errorf("failed to update layer group %s: %w", group, err)
	}
	log.Printf("Added layer %s to group %s", qualified, group)
	return nil
}

func (c *Client) createGroup(ctx context.Context, ws, group, qualified, title string) error {
	if title == "" {
		title = group
	}
	body := map[string]interface{}{
		"layerGroup": map[string]interface{}{
			"name":        group,
			"title":       title,
			"abstractTxt": fmt.Sprintf("Layer group %s", group),
			"mode":        "CONTAINER",
			"workspace":   map[string]interface{}{"name": ws},
			"publishables": map[string]interface{}{
				"published": []interface{}{
					map[string]interface{}{"@type": "layer", "name": qualified},
				},
			},
			"bounds": map[string]interface{}{
				"minx": -180, "maxx": 180, "miny": -90, "maxy": 90, "crs": "EPSG:4326",
			},
		},
	}
	err := c.create(ctx, workspacePath(ws)+"/layergroups", body)
	if err != nil {
		return fmt.Errorf("failed to create layer group %s: %w", group, err)
	}
	log.Printf("Created layer group %s with initial layer %s", group, qualified)
	return nil
}

// ListGroups returns the names of all layer groups in ws.
func (c *Client) ListGroups(ctx context.Context, ws string) ([]string, error) {
	var raw struct {
		LayerGroups interface{} `json:"layerGroups"`
	}
	if err := c.get(ctx, workspacePath(ws)+"/layergroups", &raw); err != nil {
		return nil, err
	}
	// An empty workspace answers {"layerGroups": ""}.
	groups, _ := raw.LayerGroups.(map[string]interface{})
	if groups == nil {
		return nil, nil
	}
	var names []string
	for _, g := range asList(groups["layerGroup"]) {
		if name := publishedName(g); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// RemoveFromGroup drops qualified from group. A group left with no members
// is deleted since the map server rejects empty groups.
func (c *Client) RemoveFromGroup(ctx context.Context, ws, group, qualified string) error {
	doc, err := c.getGroup(ctx, ws, group)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read layer group %s: %w", group, err)
	}
	i := doc.indexOf(qualified)
	if i < 0 {
		return nil
	}

	published := doc.published()
	published = append(published[:i:i], published[i+1:]...)
	if len(published) == 0 {
		if err := c.remove(ctx, groupPath(ws, group)); err != nil {
			return fmt.Errorf("failed to delete empty layer group %s: %w", group, err)
		}
		log.Printf("Deleted layer group %s after removing its last layer %s", group, qualified)
		return nil
	}

	styles, hasStyles := doc.styles()
	if hasStyles && i < len(styles) {
		styles = append(styles[:i:i], styles[i+1:]...)
	}
	doc.set(published, styles, hasStyles)
	if err := c.sendJSON(ctx, http.MethodPut, groupPath(ws, group), doc.raw); err != nil {
		return fmt.Errorf("failed to update layer group %s: %w", group, err)
	}
	log.Printf("Removed layer %s from group %s", qualified, group)
	return nil
}
