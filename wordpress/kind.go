package wordpress

import "strconv"

// GlobalTag is carried by every cached CMS response.
const GlobalTag = "wordpress"

// Kind describes a REST collection and the content type name the CMS uses for
// it in webhooks. Parent names an umbrella type; taxonomies sit under "term".
type Kind struct {
	Endpoint string
	Name     string
	Parent   string
}

var (
	KindPost     = Kind{Endpoint: "posts", Name: "post"}
	KindPage     = Kind{Endpoint: "pages", Name: "page"}
	KindCategory = Kind{Endpoint: "categories", Name: "category", Parent: "term"}
	KindTag      = Kind{Endpoint: "tags", Name: "post_tag", Parent: "term"}
	KindUser     = Kind{Endpoint: "users", Name: "user"}
	KindMedia    = Kind{Endpoint: "media", Name: "attachment"}
	KindMenu     = Kind{Endpoint: "menu-items", Name: "menu"}
)

// irregular holds the content type names whose plural is not name+"s".
var irregular = map[string]string{
	"category": "categories",
	"taxonomy": "taxonomies",
}

// Plural returns the collection tag for a content type name.
func Plural(name string) string {
	if p, ok := irregular[name]; ok {
		return p
	}
	return name + "s"
}

// ItemTag returns the tag for a single record, e.g. "post-42".
func ItemTag(name string, id int64) string {
	return name + "-" + strconv.FormatInt(id, 10)
}

// Tags returns the cache tags for a fetch of this kind, scoped to ids when
// the fetch targets specific records.
func (k Kind) Tags(ids ...int64) []string {
	tags := []string{GlobalTag, Plural(k.Name)}
	if k.Parent != "" {
		tags = append(tags, Plural(k.Parent))
	}
	for _, id := range ids {
		tags = append(tags, ItemTag(k.Name, id))
		if k.Parent != "" {
			tags = append(tags, ItemTag(k.Parent, id))
		}
	}
	return tags
}
