package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for bookmark documents.
//
// Titles get English stemming for natural full-text search. URLs use the
// simple analyzer so path segments still match without stemming noise.
// Domains and tag slugs are keywords: "go-lang" must match as a whole.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	urlFieldMapping := bleve.NewTextFieldMapping()
	urlFieldMapping.Analyzer = simple.Name
	urlFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("url", urlFieldMapping)

	domainFieldMapping := bleve.NewTextFieldMapping()
	domainFieldMapping.Analyzer = keyword.Name
	domainFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("domain", domainFieldMapping)

	tagsFieldMapping := bleve.NewTextFieldMapping()
	tagsFieldMapping.Analyzer = keyword.Name
	tagsFieldMapping.Store = true
	tagsFieldMapping.IncludeTermVectors = true // For faceting
	docMapping.AddFieldMappingsAt("tags", tagsFieldMapping)

	publicFieldMapping := bleve.NewTextFieldMapping()
	publicFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("is_public", publicFieldMapping)

	createdAtFieldMapping := bleve.NewNumericFieldMapping()
	createdAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("created_at", createdAtFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
