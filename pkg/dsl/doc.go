/*
Package dsl loads node trees from YAML or JSON documents.

A tree file is a single nested document tagged by kind:

	kind: decision
	prompt: |
	  Categorize this document.
	children:
	  - kind: sequence
	    children:
	      - kind: output
	        message: "Categorized as: RECEIPT"
	      - kind: output
	        message: "Extracting amount..."
	  - kind: output
	    message: "Categorized as: PERSONAL"

Unknown fields and unknown kinds are load errors; the decoded tree is
shape-validated before it is returned.
*/
package dsl
