package wikidata

import (
	"strconv"
	"strings"
)

// playersQuery selects every human basketball player with at least one NBA
// team membership, one row per (alias, position, membership) combination.
const playersQuery = `
PREFIX wd: <http://www.wikidata.org/entity/>
PREFIX wdt: <http://www.wikidata.org/prop/direct/>
PREFIX p: <http://www.wikidata.org/prop/>
PREFIX ps: <http://www.wikidata.org/prop/statement/>
PREFIX pq: <http://www.wikidata.org/prop/qualifier/>
PREFIX bd: <http://www.bigdata.com/rdf#>
PREFIX wikibase: <http://wikiba.se/ontology#>
PREFIX skos: <http://www.w3.org/2004/02/skos/core#>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>

SELECT DISTINCT ?player ?playerLabel ?alias ?positionLabel ?birthDate ?teamLabel ?nbaStart ?nbaEnd
WHERE {
  ?player wdt:P31 wd:Q5;
          wdt:P106 wd:Q3665646;
          wdt:P54 ?anyTeam.
  ?anyTeam wdt:P118 wd:Q155223.

  OPTIONAL { ?player wdt:P413 ?position. }
  OPTIONAL { ?player wdt:P569 ?birthDate. }
  OPTIONAL {
    ?player p:P54 ?membership.
    ?membership ps:P54 ?team.
    ?team wdt:P118 wd:Q155223.
    OPTIONAL { ?team rdfs:label ?teamLabel FILTER (lang(?teamLabel) = "en") }
    OPTIONAL { ?membership pq:P580 ?nbaStart. }
    OPTIONAL { ?membership pq:P582 ?nbaEnd. }
  }
  OPTIONAL { ?player skos:altLabel ?alias FILTER (lang(?alias) = "en") }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "en". }
}
ORDER BY ?player
LIMIT __LIMIT__
OFFSET __OFFSET__
`

func pageQuery(limit, offset int) string {
	q := strings.Replace(playersQuery, "__LIMIT__", strconv.Itoa(limit), 1)
	return strings.Replace(q, "__OFFSET__", strconv.Itoa(offset), 1)
}
