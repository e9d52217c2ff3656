package domain

// CountrySite is a configured marketplace catalog to scrape.
type CountrySite struct {
	// Country is the label stamped on every deal from this site, e.g. "Italy".
	Country string `yaml:"country"`
	// Code is the short code used in summaries, e.g. "IT".
	Code string `yaml:"code"`
	URL  string `yaml:"url"`
}

// CountryCatalog pairs a country with the text fetched for it during one run.
type CountryCatalog struct {
	Country string
	URL     string
	Text    string
}

// DefaultSites are the Vinted catalogs scraped when none are configured.
func DefaultSites() []CountrySite {
	return []CountrySite{
		{Country: "Italy", Code: "IT", URL: "https://www.vinted.it/catalog"},
		{Country: "France", Code: "FR", URL: "https://www.vinted.fr/catalog"},
		{Country: "Germany", Code: "DE", URL: "https://www.vinted.de/catalog"},
	}
}
