package adapter

// Trace is the serializable description of the adapter that the Python
// helper rebuilds as a torch module before tracing. It carries only what
// the forward call synthesizes; everything else is a graph input.
type Trace struct {
	LangID      int64    `json:"lang_id"`
	BertDim     int      `json:"bert_dim"`
	BertMode    string   `json:"bert_mode"`
	JaBertDim   int      `json:"ja_bert_dim"`
	JaBertMode  string   `json:"ja_bert_mode"`
	InputNames  []string `json:"input_names"`
	OutputNames []string `json:"output_names"`
	// LangParity is the first position carrying the language id; every
	// second position after it does too.
	LangParity int `json:"lang_parity"`
}

func (a *Adapter) Trace() Trace {
	return Trace{
		LangID:      a.langID,
		BertDim:     a.primary.Width(),
		BertMode:    a.primary.Mode(),
		JaBertDim:   a.secondary.Width(),
		JaBertMode:  a.secondary.Mode(),
		InputNames:  a.InputNames(),
		OutputNames: a.OutputNames(),
		LangParity:  1,
	}
}
