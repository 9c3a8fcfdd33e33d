package assessor

// Category groups domains by the kind of source they are. The category
// feeds both the base reputation and a small content-quality adjustment.
type Category string

const (
	CategoryOfficial  Category = "official"
	CategoryCommunity Category = "community"
	CategoryTutorial  Category = "tutorial"
	CategoryBlog      Category = "blog"
	CategoryForum     Category = "forum"
	CategoryUnknown   Category = "unknown"
)

// baseReputation is the starting score per category.
var baseReputation = map[Category]float64{
	CategoryOfficial:  0.95,
	CategoryCommunity: 0.80,
	CategoryTutorial:  0.70,
	CategoryBlog:      0.60,
	CategoryForum:     0.55,
	CategoryUnknown:   0.50,
}

// registryEntry is one curated domain. Topics list the subject areas the
// domain is particularly strong in; a matching topic adds a boost.
type registryEntry struct {
	category Category
	topics   []string
}

// domainRegistry is the curated reputation registry. Unlisted domains
// fall back to the learned quality ledger, then to the unknown default.
var domainRegistry = map[string]registryEntry{
	// Official documentation.
	"go.dev":                    {CategoryOfficial, []string{"go", "golang"}},
	"pkg.go.dev":                {CategoryOfficial, []string{"go", "golang"}},
	"docs.python.org":           {CategoryOfficial, []string{"python"}},
	"doc.rust-lang.org":         {CategoryOfficial, []string{"rust"}},
	"developer.mozilla.org":     {CategoryOfficial, []string{"javascript", "css", "html", "web"}},
	"kubernetes.io":             {CategoryOfficial, []string{"kubernetes", "k8s"}},
	"docs.docker.com":           {CategoryOfficial, []string{"docker", "containers"}},
	"docs.aws.amazon.com":       {CategoryOfficial, []string{"aws", "cloud"}},
	"cloud.google.com":          {CategoryOfficial, []string{"gcp", "cloud"}},
	"learn.microsoft.com":       {CategoryOfficial, []string{"azure", "dotnet", "csharp"}},
	"docs.github.com":           {CategoryOfficial, []string{"git", "github", "actions"}},
	"git-scm.com":               {CategoryOfficial, []string{"git"}},
	"www.postgresql.org":        {CategoryOfficial, []string{"postgresql", "sql"}},
	"sqlite.org":                {CategoryOfficial, []string{"sqlite", "sql"}},
	"www.sqlite.org":            {CategoryOfficial, []string{"sqlite", "sql"}},
	"nodejs.org":                {CategoryOfficial, []string{"node", "javascript"}},
	"react.dev":                 {CategoryOfficial, []string{"react", "javascript"}},
	"www.typescriptlang.org":    {CategoryOfficial, []string{"typescript"}},
	"fastapi.tiangolo.com":      {CategoryOfficial, []string{"fastapi", "python"}},
	"docs.djangoproject.com":    {CategoryOfficial, []string{"django", "python"}},
	"www.rfc-editor.org":        {CategoryOfficial, []string{"protocol", "rfc"}},
	"datatracker.ietf.org":      {CategoryOfficial, []string{"protocol", "rfc"}},

	// Community references.
	"github.com":        {CategoryCommunity, []string{"code", "open source"}},
	"gitlab.com":        {CategoryCommunity, []string{"code", "open source"}},
	"en.wikipedia.org":  {CategoryCommunity, nil},
	"arxiv.org":         {CategoryCommunity, []string{"research", "papers", "machine learning"}},
	"pypi.org":          {CategoryCommunity, []string{"python", "packages"}},
	"crates.io":         {CategoryCommunity, []string{"rust", "packages"}},
	"www.npmjs.com":     {CategoryCommunity, []string{"node", "packages"}},
	"hub.docker.com":    {CategoryCommunity, []string{"docker", "images"}},

	// Tutorials.
	"www.digitalocean.com":  {CategoryTutorial, []string{"devops", "linux"}},
	"realpython.com":        {CategoryTutorial, []string{"python"}},
	"gobyexample.com":       {CategoryTutorial, []string{"go", "golang"}},
	"www.baeldung.com":      {CategoryTutorial, []string{"java", "spring"}},
	"css-tricks.com":        {CategoryTutorial, []string{"css", "web"}},
	"www.freecodecamp.org":  {CategoryTutorial, []string{"web", "javascript"}},

	// Blogs.
	"medium.com":   {CategoryBlog, nil},
	"dev.to":       {CategoryBlog, nil},
	"hashnode.com": {CategoryBlog, nil},

	// Forums and Q&A.
	"stackoverflow.com":        {CategoryForum, []string{"debugging", "errors"}},
	"serverfault.com":          {CategoryForum, []string{"ops", "infrastructure"}},
	"superuser.com":            {CategoryForum, nil},
	"news.ycombinator.com":     {CategoryForum, nil},
	"www.reddit.com":           {CategoryForum, nil},
	"discuss.python.org":       {CategoryForum, []string{"python"}},
	"users.rust-lang.org":      {CategoryForum, []string{"rust"}},
	"forum.golangbridge.org":   {CategoryForum, []string{"go", "golang"}},
}

// lookupDomain finds the registry entry for a host, trying the exact host
// first and then without a leading "www.".
func lookupDomain(host string) (registryEntry, bool) {
	if e, ok := domainRegistry[host]; ok {
		return e, true
	}
	if trimmed, found := cutPrefix(host, "www."); found {
		if e, ok := domainRegistry[trimmed]; ok {
			return e, true
		}
	} else if e, ok := domainRegistry["www."+host]; ok {
		return e, true
	}
	return registryEntry{category: CategoryUnknown}, false
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return s, false
}
