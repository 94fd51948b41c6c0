// Package filterconfig parses the YAML document accepted by btfdump's
// --filter-config flag into a pkg/btf.Filter. It governs which declared
// types make it into an emitted dump: by id, by name and by kind. The
// include_ext key is decoded into Filter.IncludeExt, which no btfdump
// command reads.
package filterconfig

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jtang613/gobtf/pkg/btf"
)

// Document is the on-disk shape of a filter config file:
//
//	ids: [12, 57]
//	names: ["task_struct", "sk_buff"]
//	kinds: ["struct", "union", "typedef"]
//	include_ext: true
type Document struct {
	IDs        []uint32 `yaml:"ids"`
	Names      []string `yaml:"names"`
	Kinds      []string `yaml:"kinds"`
	IncludeExt bool     `yaml:"include_ext"`
}

var kindNames = map[string]btf.Kind{
	"int":        btf.KindInt,
	"ptr":        btf.KindPointer,
	"pointer":    btf.KindPointer,
	"array":      btf.KindArray,
	"struct":     btf.KindStruct,
	"union":      btf.KindUnion,
	"enum":       btf.KindEnum,
	"fwd":        btf.KindFwd,
	"typedef":    btf.KindTypedef,
	"volatile":   btf.KindVolatile,
	"const":      btf.KindConst,
	"restrict":   btf.KindRestrict,
	"func":       btf.KindFunc,
	"func_proto": btf.KindFuncProto,
	"var":        btf.KindVar,
	"datasec":    btf.KindDatasec,
	"float":      btf.KindFloat,
	"decl_tag":   btf.KindDeclTag,
	"type_tag":   btf.KindTypeTag,
	"enum64":     btf.KindEnum64,
}

// Parse decodes a filter config document and converts it into a btf.Filter.
func Parse(data []byte) (*btf.Filter, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("filterconfig: %w", err)
	}

	f := &btf.Filter{
		Names:      doc.Names,
		IncludeExt: doc.IncludeExt,
	}
	for _, id := range doc.IDs {
		f.IDs = append(f.IDs, btf.TypeID(id))
	}
	for _, name := range doc.Kinds {
		k, ok := kindNames[name]
		if !ok {
			return nil, fmt.Errorf("filterconfig: unknown kind %q", name)
		}
		f.Kinds = append(f.Kinds, k)
	}
	return f, nil
}
