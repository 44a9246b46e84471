package ai

// EntityTypes defines the categories for extracted entities.
// These types are used by entity extractors to classify what a name refers
// to. The set is open: extractors may emit types outside this list and
// normalization preserves them, but prompts steer the model toward these.
var EntityTypes = []string{
	"CLASS",
	"CONCEPT",
	"CONFIGURATION",
	"CONSTANT",
	"DATABASE",
	"EVENT",
	"FILE",
	"FUNCTION",
	"LIBRARY",
	"LOCATION",
	"ORGANIZATION",
	"PERSON",
	"PRODUCT",
	"PROTOCOL",
	"SERVICE",
	"TECHNOLOGY",
	"URL",
}

// RelationshipDefault is the relationship type assigned when an extractor
// emits a relationship with no usable type.
const RelationshipDefault = "RELATED_TO"
