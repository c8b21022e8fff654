package config

import "time"

// Browser-like identity so state education servers do not reject the crawler
const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	DefaultAcceptLanguage = "de-DE,de;q=0.9,en;q=0.8"
)

// DefaultMaxDepth is the traversal bound applied when a config file does not set max_depth
const DefaultMaxDepth = 2

// Defaults returns the configuration a config file is decoded on top of.
// These are the settings where zero is a meaningful value, so Validate cannot fill them in.
func Defaults() AppConfig {
	return AppConfig{
		MaxDepth:        DefaultMaxDepth,
		LinkDelay:       500 * time.Millisecond,
		SeedDelay:       1 * time.Second,
		DownloadDelay:   500 * time.Millisecond,
		RequestDelay:    500 * time.Millisecond,
		DownloadRetries: 2,
	}
}

// DefaultTopicKeywords are the school subjects worth following
func DefaultTopicKeywords() []string {
	return []string{
		"mathematik", "mathe", "rechnen",
		"deutsch", "sprache", "lesen", "schreiben",
		"englisch", "fremdsprache",
		"sachunterricht", "sachkunde", "heimat",
		"naturwissenschaft", "biologie", "physik", "chemie", "nawi",
		"geschichte", "politik", "gesellschaft", "sozialkunde",
		"geografie", "geographie", "erdkunde",
		"kunst", "musik", "sport",
		"religion", "ethik",
		"informatik", "medien", "digital",
	}
}

// DefaultStructuralKeywords are terms that mark curriculum index pages
func DefaultStructuralKeywords() []string {
	return []string{
		"lehrplan", "curriculum", "rahmenplan", "bildungsplan",
		"kerncurriculum", "fachanforderung", "rahmenlehrplan",
		"unterricht", "fach", "schule", "grundschule", "gymnasium",
		"sekundarstufe", "primarstufe", "jahrgangsstufe",
	}
}

// DefaultSites returns the curriculum servers of the 16 German states
func DefaultSites() []SiteConfig {
	return []SiteConfig{
		{Key: "baden-wuerttemberg", Name: "Baden-Württemberg", SeedURLs: []string{
			"https://www.bildungsplaene-bw.de/,Lde/BP2016BW_ALLG_GS",
			"https://www.bildungsplaene-bw.de/,Lde/BP2016BW_ALLG_SEK1",
			"https://www.bildungsplaene-bw.de/,Lde/BP2016BW_ALLG_GYM",
		}},
		{Key: "bayern", Name: "Bayern", SeedURLs: []string{
			"https://www.lehrplanplus.bayern.de/schulart/grundschule",
			"https://www.lehrplanplus.bayern.de/schulart/mittelschule",
			"https://www.lehrplanplus.bayern.de/schulart/realschule",
			"https://www.lehrplanplus.bayern.de/schulart/gymnasium",
		}},
		{Key: "berlin", Name: "Berlin", SeedURLs: []string{
			"https://bildungsserver.berlin-brandenburg.de/rahmenlehrplaene",
		}},
		{Key: "brandenburg", Name: "Brandenburg", SeedURLs: []string{
			"https://bildungsserver.berlin-brandenburg.de/rahmenlehrplaene",
		}},
		{Key: "bremen", Name: "Bremen", SeedURLs: []string{
			"https://www.lis.bremen.de/schulqualitaet/curriculumentwicklung/bildungsplaene-702",
		}},
		{Key: "hamburg", Name: "Hamburg", SeedURLs: []string{
			"https://bildungsplaene.hamburg.de/grundschule",
			"https://bildungsplaene.hamburg.de/stadtteilschule",
			"https://bildungsplaene.hamburg.de/gymnasium",
		}},
		{Key: "hessen", Name: "Hessen", SeedURLs: []string{
			"https://kultusministerium.hessen.de/Unterricht/Kerncurricula",
		}},
		{Key: "mecklenburg-vorpommern", Name: "Mecklenburg-Vorpommern", SeedURLs: []string{
			"https://www.bildung-mv.de/lehrer/schule-und-unterricht/rahmenlehrplaene/",
		}},
		{Key: "niedersachsen", Name: "Niedersachsen", SeedURLs: []string{
			"https://cuvo.nibis.de/cuvo.php",
		}},
		{Key: "nordrhein-westfalen", Name: "Nordrhein-Westfalen", SeedURLs: []string{
			"https://www.schulentwicklung.nrw.de/lehrplaene/",
		}},
		{Key: "rheinland-pfalz", Name: "Rheinland-Pfalz", SeedURLs: []string{
			"https://lehrplaene.bildung-rp.de/",
		}},
		{Key: "saarland", Name: "Saarland", SeedURLs: []string{
			"https://www.saarland.de/mbk/DE/portale/bildungsserver/unterricht-und-bildungsthemen/lehrplaene/lehrplaene_node.html",
		}},
		{Key: "sachsen", Name: "Sachsen", SeedURLs: []string{
			"https://www.schulportal.sachsen.de/lplandb/",
		}},
		{Key: "sachsen-anhalt", Name: "Sachsen-Anhalt", SeedURLs: []string{
			"https://www.bildung-lsa.de/lehrplaene___rahmenrichtlinien.html",
		}},
		{Key: "schleswig-holstein", Name: "Schleswig-Holstein", SeedURLs: []string{
			"https://lehrplan.lernnetz.de/",
		}},
		{Key: "thueringen", Name: "Thüringen", SeedURLs: []string{
			"https://www.schulportal-thueringen.de/lehrplaene",
		}},
	}
}
