package rulebased

import "github.com/poiesic/weavit/ai"

// knownTechnologies maps a lowercase token to its canonical entity.
// Lookups run against whole words only, after URL masking, so "https"
// matches standalone mentions of the protocol rather than every link.
var knownTechnologies = map[string]ai.ExtractedEntity{
	// languages
	"golang":     {Type: "TECHNOLOGY", Name: "Go"},
	"python":     {Type: "TECHNOLOGY", Name: "Python"},
	"javascript": {Type: "TECHNOLOGY", Name: "JavaScript"},
	"typescript": {Type: "TECHNOLOGY", Name: "TypeScript"},
	"java":       {Type: "TECHNOLOGY", Name: "Java"},
	"rust":       {Type: "TECHNOLOGY", Name: "Rust"},
	"ruby":       {Type: "TECHNOLOGY", Name: "Ruby"},
	"kotlin":     {Type: "TECHNOLOGY", Name: "Kotlin"},
	"swift":      {Type: "TECHNOLOGY", Name: "Swift"},
	"c++":        {Type: "TECHNOLOGY", Name: "C++"},
	"c#":         {Type: "TECHNOLOGY", Name: "C#"},
	"node.js":    {Type: "TECHNOLOGY", Name: "Node.js"},
	"nodejs":     {Type: "TECHNOLOGY", Name: "Node.js"},

	// storage
	"postgresql":    {Type: "DATABASE", Name: "PostgreSQL"},
	"postgres":      {Type: "DATABASE", Name: "PostgreSQL"},
	"mysql":         {Type: "DATABASE", Name: "MySQL"},
	"sqlite":        {Type: "DATABASE", Name: "SQLite"},
	"redis":         {Type: "DATABASE", Name: "Redis"},
	"neo4j":         {Type: "DATABASE", Name: "Neo4j"},
	"mongodb":       {Type: "DATABASE", Name: "MongoDB"},
	"elasticsearch": {Type: "DATABASE", Name: "Elasticsearch"},
	"badger":        {Type: "DATABASE", Name: "Badger"},

	// infrastructure
	"kafka":      {Type: "TECHNOLOGY", Name: "Kafka"},
	"rabbitmq":   {Type: "TECHNOLOGY", Name: "RabbitMQ"},
	"nats":       {Type: "TECHNOLOGY", Name: "NATS"},
	"docker":     {Type: "TECHNOLOGY", Name: "Docker"},
	"kubernetes": {Type: "TECHNOLOGY", Name: "Kubernetes"},
	"k8s":        {Type: "TECHNOLOGY", Name: "Kubernetes"},
	"terraform":  {Type: "TECHNOLOGY", Name: "Terraform"},
	"ansible":    {Type: "TECHNOLOGY", Name: "Ansible"},
	"nginx":      {Type: "TECHNOLOGY", Name: "nginx"},
	"linux":      {Type: "TECHNOLOGY", Name: "Linux"},
	"git":        {Type: "TECHNOLOGY", Name: "Git"},
	"prometheus": {Type: "TECHNOLOGY", Name: "Prometheus"},
	"grafana":    {Type: "TECHNOLOGY", Name: "Grafana"},
	"ffmpeg":     {Type: "TECHNOLOGY", Name: "FFmpeg"},
	"tesseract":  {Type: "TECHNOLOGY", Name: "Tesseract"},
	"whisper":    {Type: "TECHNOLOGY", Name: "Whisper"},

	// frameworks and libraries
	"react":      {Type: "LIBRARY", Name: "React"},
	"vue":        {Type: "LIBRARY", Name: "Vue"},
	"angular":    {Type: "LIBRARY", Name: "Angular"},
	"django":     {Type: "LIBRARY", Name: "Django"},
	"flask":      {Type: "LIBRARY", Name: "Flask"},
	"spring":     {Type: "LIBRARY", Name: "Spring"},
	"tensorflow": {Type: "LIBRARY", Name: "TensorFlow"},
	"pytorch":    {Type: "LIBRARY", Name: "PyTorch"},

	// protocols and formats
	"graphql":   {Type: "PROTOCOL", Name: "GraphQL"},
	"grpc":      {Type: "PROTOCOL", Name: "gRPC"},
	"http":      {Type: "PROTOCOL", Name: "HTTP"},
	"https":     {Type: "PROTOCOL", Name: "HTTPS"},
	"tcp":       {Type: "PROTOCOL", Name: "TCP"},
	"websocket": {Type: "PROTOCOL", Name: "WebSocket"},
	"oauth":     {Type: "PROTOCOL", Name: "OAuth"},
	"json":      {Type: "TECHNOLOGY", Name: "JSON"},
	"yaml":      {Type: "TECHNOLOGY", Name: "YAML"},
	"protobuf":  {Type: "TECHNOLOGY", Name: "Protocol Buffers"},

	// platforms and services
	"aws":    {Type: "SERVICE", Name: "AWS"},
	"azure":  {Type: "SERVICE", Name: "Azure"},
	"gcp":    {Type: "SERVICE", Name: "GCP"},
	"github": {Type: "SERVICE", Name: "GitHub"},
	"gitlab": {Type: "SERVICE", Name: "GitLab"},
	"ollama": {Type: "SERVICE", Name: "Ollama"},
	"openai": {Type: "ORGANIZATION", Name: "OpenAI"},
}
