package workflows

// Recipe is a named multi-step use case: a fixed tool chain plus a query
// template. "{{target}}" in the query is replaced with the caller's target.
type Recipe struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Tools       []string `yaml:"tools" json:"tools"`
	Query       string   `yaml:"query" json:"query"`
	Mode        string   `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// builtinRecipes are the recipes every deployment has; YAML files can add
// more but cannot replace these.
var builtinRecipes = []*Recipe{
	{
		Name:        "analyze_website",
		Description: "Crawl a website, analyze its content and produce a PDF report.",
		Tools:       []string{"start_session", "crawl", "analyze_content", "generate_report"},
		Query: "Analyze the website {{target}}. Start a browser session, crawl the site, " +
			"analyze what the site is about, its main topics and calls to action, then " +
			"generate a report of your findings.",
	},
	{
		Name:        "monitor_changes",
		Description: "Crawl a page and capture a screenshot so later runs can be compared.",
		Tools:       []string{"crawl", "capture_screenshot", "analyze_content"},
		Query: "Capture the current state of {{target}}. Crawl the page, take a full-page " +
			"screenshot, and describe the page content precisely enough that a future run " +
			"can be compared against this description.",
	},
	{
		Name:        "extract_data",
		Description: "Crawl a page and pull out its structured data.",
		Tools:       []string{"crawl", "extract_links", "analyze_content"},
		Query: "Extract the structured data from {{target}}: crawl the page, list its " +
			"outgoing links, and report the key facts, entities and values it contains " +
			"as a structured summary.",
	},
	{
		Name:        "research_topic",
		Description: "Crawl a starting page, follow relevant links and compile findings.",
		Tools:       []string{"crawl", "extract_links", "crawl", "analyze_content", "generate_report"},
		Query: "Research the topic covered at {{target}}. Crawl the starting page, pick the " +
			"most relevant linked page and crawl it too, then compile the combined findings " +
			"into a report.",
	},
}
