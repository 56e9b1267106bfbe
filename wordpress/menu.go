package wordpress

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// MenuItem is a wp/v2/menu-items record.
type MenuItem struct {
	ID        int64    `json:"id"`
	Title     Rendered `json:"title"`
	URL       string   `json:"url"`
	Parent    int64    `json:"parent"`
	MenuOrder int      `json:"menu_order"`
	Target    string   `json:"target"`
	AttrTitle string   `json:"attr_title"`
	Classes   []string `json:"classes"`
}

// MenuNode is a menu item with its ordered children.
type MenuNode struct {
	MenuItem
	Children []*MenuNode
}

type menuLocation struct {
	Name string `json:"name"`
	Menu int64  `json:"menu"`
}

// Menu returns the item tree of the menu assigned to a theme location. An
// unknown location is returned as *Error.
func (c *Client) Menu(ctx context.Context, location string) ([]*MenuNode, error) {
	loc, err := c.get(ctx, KindMenu, "menu-locations/"+url.PathEscape(location), nil, KindMenu.Tags())
	if err != nil {
		return nil, err
	}
	ml, err := decode[menuLocation](loc)
	if err != nil {
		return nil, err
	}
	if ml.Menu == 0 {
		return nil, nil
	}
	items := FetchAll[MenuItem](ctx, c, KindMenu, Filter{}, url.Values{"menus": {strconv.FormatInt(ml.Menu, 10)}})
	return BuildMenuTree(items), nil
}

// BuildMenuTree links items into a tree in one parent-pointer pass. Items with
// parent 0, or whose parent is missing, become roots. Siblings are ordered by
// menu_order. Cycles are assumed absent; items on a cycle are unreachable.
func BuildMenuTree(items []MenuItem) []*MenuNode {
	sorted := append([]MenuItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MenuOrder < sorted[j].MenuOrder })

	nodes := make(map[int64]*MenuNode, len(sorted))
	for _, it := range sorted {
		nodes[it.ID] = &MenuNode{MenuItem: it}
	}

	var roots []*MenuNode
	for _, it := range sorted {
		n := nodes[it.ID]
		parent, ok := nodes[it.Parent]
		if it.Parent == 0 || !ok || parent == n {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	return roots
}

// RelativeURL rewrites links into the CMS origin as site-relative paths so
// they stay on the frontend. Other URLs come back unchanged.
func RelativeURL(cmsBase, link string) string {
	base := strings.TrimRight(cmsBase, "/")
	if base == "" || !strings.HasPrefix(link, base) {
		return link
	}
	rest := link[len(base):]
	switch {
	case rest == "":
		return "/"
	case rest[0] == '/', rest[0] == '?', rest[0] == '#':
		if strings.HasPrefix(rest, "/wp-content/") || strings.HasPrefix(rest, "/wp-json/") || strings.HasPrefix(rest, "/wp-admin/") {
			return link
		}
		if rest[0] != '/' {
			rest = "/" + rest
		}
		return rest
	}
	// e.g. base "https://cms.test" vs link "https://cms.test.evil.com/..."
	return link
}
