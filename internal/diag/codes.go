package diag

import (
	"fmt"
)

// Code is a compact numeric diagnostic identifier. Ranges are reserved
// per pipeline stage so the stable string form sorts by stage.
type Code uint16

const (
	UnknownCode Code = 0

	// Configuration and invocation.
	CfgBadRootHeader Code = 1001
	CfgBadIncludeDir Code = 1002
	CfgBadManifest   Code = 1003
	CfgBadProfile    Code = 1004
	CfgBadTarget     Code = 1005

	// Ingest and front end.
	IngestInfo           Code = 2000
	IngestMissingInclude Code = 2001
	IngestMacroSkipped   Code = 2002
	IngestSkippedDecl    Code = 2003
	IngestParseError     Code = 2004
	IngestCacheHit       Code = 2005

	// Type graph.
	GraphInfo             Code = 3000
	GraphOpaqueFallback   Code = 3001
	GraphDuplicateDef     Code = 3002
	GraphMissingWellKnown Code = 3003
	GraphBadSpelling      Code = 3004

	// Layout.
	LayoutBitfieldOverflow Code = 4001
	LayoutValueCycle       Code = 4002
	LayoutBadPacking       Code = 4003
	LayoutFlexibleArray    Code = 4004

	// Interface shape and vtable.
	ShapeMultipleBases Code = 5001
	ShapeBadGUID       Code = 5002
	ShapeUnknownBase   Code = 5003

	// Emit.
	EmitInfo              Code = 6000
	EmitUnmappedPrimitive Code = 6001

	// Observability.
	ObsTimings Code = 9001
)

var codeTitles = map[Code]string{
	UnknownCode: "unknown problem",

	CfgBadRootHeader: "root header not usable",
	CfgBadIncludeDir: "include directory not usable",
	CfgBadManifest:   "manifest not usable",
	CfgBadProfile:    "unknown platform profile",
	CfgBadTarget:     "unknown target",

	IngestInfo:           "ingest note",
	IngestMissingInclude: "owned include not found",
	IngestMacroSkipped:   "macro constant skipped",
	IngestSkippedDecl:    "declaration skipped",
	IngestParseError:     "header not parseable",
	IngestCacheHit:       "parse cache hit",

	GraphInfo:             "type graph note",
	GraphOpaqueFallback:   "unresolved type degraded to opaque",
	GraphDuplicateDef:     "duplicate type definition",
	GraphMissingWellKnown: "well-known type maps to a missing primitive",
	GraphBadSpelling:      "type spelling not readable",

	LayoutBitfieldOverflow: "bitfield wider than its backing type",
	LayoutValueCycle:       "value cycle between aggregates",
	LayoutBadPacking:       "conflicting packing directives",
	LayoutFlexibleArray:    "flexible array member",

	ShapeMultipleBases: "multiple interface inheritance",
	ShapeBadGUID:       "malformed interface GUID",
	ShapeUnknownBase:   "interface base not in the owned set",

	EmitInfo:              "emit note",
	EmitUnmappedPrimitive: "primitive has no mapping in this target",

	ObsTimings: "timings",
}

// ID returns the stable, prefixed identifier used in output and tests.
func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("CFG%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("ING%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("GRA%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("LAY%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("SHP%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("EMI%04d", ic)
	case ic >= 9000 && ic < 10000:
		return fmt.Sprintf("OBS%04d", ic)
	default:
		return fmt.Sprintf("GEN%04d", ic)
	}
}

// Title returns the short human description for the code.
func (c Code) Title() string {
	title, ok := codeTitles[c]
	if !ok {
		return codeTitles[UnknownCode]
	}
	return title
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
