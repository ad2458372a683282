// Package e2e exercises the full system end to end: a corpus of documents is
// ingested and every query case must retrieve its expected source.
package e2e

import (
	"fmt"
	"strings"
)

// Document is one corpus entry. Source is the name the document is ingested
// under; Content carries a signature phrase unique to the document so query
// cases can assert the right source comes back.
type Document struct {
	Source  string
	Content string
}

// QueryCase is a question and the source(s) that must appear among the
// retrieved chunks. At least one of ExpectedSources must be cited.
type QueryCase struct {
	Question        string
	ExpectedSources []string
	Description     string
}

// Corpus holds the documents and query cases for the end-to-end tests.
type Corpus struct {
	Documents []Document
	Cases     []QueryCase
}

// BuildCorpus returns the document set with one query case per signature
// phrase. Every document is short enough to ingest as a single chunk at the
// chunk sizes the tests use.
func BuildCorpus() *Corpus {
	docs := buildDocuments()
	return &Corpus{
		Documents: docs,
		Cases:     buildQueryCases(docs),
	}
}

func buildDocuments() []Document {
	topics := []struct {
		slug    string
		content string
	}{
		{"paris", "Paris is the capital of France. The Eiffel Tower in Paris attracts millions of visitors."},
		{"tokyo", "Tokyo is the capital of Japan. The Shibuya crossing in Tokyo is famously busy."},
		{"berlin", "Berlin is the capital of Germany. The Brandenburg Gate stands in central Berlin."},
		{"rome", "Rome is the capital of Italy. The Colosseum in Rome hosted gladiator contests."},
		{"cairo", "Cairo is the capital of Egypt. The pyramids of Giza are near Cairo."},
		{"nile", "The Nile is the longest river in Africa. The Nile flows north into the Mediterranean."},
		{"amazon-river", "The Amazon carries more water than any other river. The Amazon basin spans nine countries."},
		{"everest", "Mount Everest is the highest mountain on Earth. Everest sits on the border of Nepal and Tibet."},
		{"mariana", "The Mariana Trench is the deepest part of the ocean. The Mariana Trench lies in the western Pacific."},
		{"sahara", "The Sahara is the largest hot desert. The Sahara covers much of northern Africa."},
		{"photosynthesis", "Photosynthesis converts sunlight into chemical energy. Plants perform photosynthesis in chloroplasts."},
		{"mitochondria", "Mitochondria produce most of the cell's ATP. Mitochondria are the powerhouse of the cell."},
		{"dna", "DNA stores genetic information in a double helix. DNA is built from four nucleotide bases."},
		{"penicillin", "Penicillin was the first widely used antibiotic. Alexander Fleming discovered penicillin in 1928."},
		{"vaccines", "Vaccines train the immune system against pathogens. Vaccines eradicated smallpox worldwide."},
		{"gravity", "Gravity is the attraction between masses. Newton described gravity with an inverse square law."},
		{"relativity", "General relativity describes gravity as curved spacetime. Einstein published relativity in 1915."},
		{"quantum", "Quantum mechanics describes matter at atomic scales. Quantum superposition allows mixed states."},
		{"光合成", "光合成は太陽の光をエネルギーに変える反応です。植物は葉緑体で光合成を行います。"},
		{"fuji", "富士山は日本で一番高い山です。富士山の山頂は冬に雪で覆われます。"},
		{"go-language", "Go is a statically typed language with garbage collection. Goroutines make concurrency in Go cheap."},
		{"python-language", "Python is a dynamically typed scripting language. Python is popular for data science."},
		{"rust-language", "Rust guarantees memory safety without garbage collection. The Rust borrow checker enforces ownership."},
		{"sqlite", "SQLite is an embedded relational database. SQLite stores the whole database in one file."},
		{"postgres", "PostgreSQL is an advanced open source database. PostgreSQL supports JSON columns and full text search."},
		{"http-protocol", "HTTP is the protocol of the web. HTTP methods include GET, POST, PUT, and DELETE."},
		{"dns", "DNS resolves names to addresses. DNS records include A, AAAA, CNAME, and MX."},
		{"tls", "TLS encrypts traffic between client and server. TLS certificates are issued by certificate authorities."},
		{"containers", "Containers package an application with its dependencies. Container images are built in layers."},
		{"kubernetes", "Kubernetes schedules containers across a cluster. Kubernetes reconciles declared state continuously."},
		{"embeddings", "Embeddings map text to dense vectors. Similar texts produce nearby embeddings."},
		{"cosine", "Cosine similarity measures the angle between vectors. Cosine distance is one minus cosine similarity."},
		{"chunking", "Chunking splits long documents into pieces. Overlapping chunks preserve context across boundaries."},
		{"retrieval", "Retrieval augmented generation grounds answers in documents. Retrieval selects the most relevant chunks."},
		{"tokenizer", "A tokenizer splits text into subword units. WordPiece tokenizers handle unknown words gracefully."},
		{"transformers", "Transformers process sequences with attention. The transformer architecture replaced recurrence."},
		{"coffee", "Coffee is brewed from roasted beans. Arabica and robusta are the main coffee species."},
		{"tea", "Tea is steeped from the leaves of Camellia sinensis. Green tea and black tea differ in oxidation."},
		{"chocolate", "Chocolate is made from fermented cacao beans. Dark chocolate contains more cacao than milk chocolate."},
		{"sourdough", "Sourdough bread rises with wild yeast. A sourdough starter is kept alive by regular feeding."},
		{"carbonara", "Carbonara is a Roman pasta dish. Carbonara uses eggs, pecorino, guanciale, and black pepper."},
		{"sushi", "Sushi pairs vinegared rice with fish or vegetables. Nigiri and maki are common sushi styles."},
		{"chess", "Chess is played on a board of sixty four squares. The queen is the most powerful chess piece."},
		{"go-game", "Go is an ancient board game of territory. Go is played with black and white stones on a grid."},
		{"marathon", "A marathon covers just over forty two kilometers. The marathon commemorates a run from Marathon to Athens."},
		{"velodrome", "Track cycling races are held in a velodrome. Velodrome tracks have steeply banked turns."},
		{"beethoven", "Beethoven composed nine symphonies. Beethoven continued composing after losing his hearing."},
		{"jazz", "Jazz grew out of blues and ragtime. Improvisation is central to jazz performance."},
	}

	out := make([]Document, 0, len(topics))
	for _, t := range topics {
		out = append(out, Document{
			Source:  t.slug + ".txt",
			Content: t.content,
		})
	}
	return out
}

// buildQueryCases derives one case per question by locating the document
// whose content carries the question's signature terms.
func buildQueryCases(docs []Document) []QueryCase {
	questions := []struct {
		question  string
		signature string
	}{
		{"What is the capital of France?", "capital of France"},
		{"Which crossing in Tokyo is famously busy?", "Shibuya crossing"},
		{"Where does the Brandenburg Gate stand?", "Brandenburg Gate"},
		{"What did the Colosseum in Rome host?", "Colosseum"},
		{"Which pyramids are near Cairo?", "pyramids of Giza"},
		{"What is the longest river in Africa?", "longest river"},
		{"What is the highest mountain on Earth?", "highest mountain"},
		{"What is the deepest part of the ocean?", "deepest part"},
		{"What is the largest hot desert?", "largest hot desert"},
		{"Where do plants perform photosynthesis?", "photosynthesis in chloroplasts"},
		{"What are the powerhouse of the cell?", "powerhouse of the cell"},
		{"Who discovered penicillin?", "discovered penicillin"},
		{"What does the Rust borrow checker enforce?", "borrow checker"},
		{"Which database stores everything in one file?", "database in one file"},
		{"What do goroutines make cheap in Go?", "Goroutines"},
		{"How is cosine distance defined?", "cosine distance"},
		{"What do overlapping chunks preserve?", "Overlapping chunks"},
		{"What grounds answers in documents?", "Retrieval augmented generation"},
		{"What ingredients go into carbonara?", "guanciale"},
		{"What keeps a sourdough starter alive?", "sourdough starter"},
		{"What is the most powerful chess piece?", "powerful chess piece"},
		{"How many symphonies did Beethoven compose?", "nine symphonies"},
	}

	var cases []QueryCase
	for _, q := range questions {
		for _, d := range docs {
			if containsTerms(d.Content, q.signature) {
				cases = append(cases, QueryCase{
					Question:        q.question,
					ExpectedSources: []string{d.Source},
					Description:     fmt.Sprintf("%q retrieves %s", q.question, d.Source),
				})
				break
			}
		}
	}
	return cases
}

// containsTerms reports whether every whitespace-separated term of signature
// occurs in content, ignoring case.
func containsTerms(content, signature string) bool {
	lower := strings.ToLower(content)
	for _, term := range strings.Fields(strings.ToLower(signature)) {
		if !strings.Contains(lower, term) {
			return false
		}
	}
	return true
}
