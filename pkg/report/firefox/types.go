package firefox

// Report is the top-level object of the processed profile format.
type Report struct {
	Meta     Meta           `json:"meta"`
	Libs     []any          `json:"libs"`
	Counters []any          `json:"counters"`
	Threads  []ThreadReport `json:"threads"`
}

type Meta struct {
	// Interval is the sampling interval in milliseconds.
	Interval float64 `json:"interval"`
	// StartTime is milliseconds since the epoch.
	StartTime                  float64    `json:"startTime"`
	ProcessType                int        `json:"processType"`
	Product                    string     `json:"product"`
	Stackwalk                  int        `json:"stackwalk"`
	Version                    int        `json:"version"`
	PreprocessedProfileVersion int        `json:"preprocessedProfileVersion"`
	Symbolicated               bool       `json:"symbolicated"`
	Categories                 []Category `json:"categories"`
	MarkerSchema               []any      `json:"markerSchema"`
}

type Category struct {
	Name          string   `json:"name"`
	Color         string   `json:"color"`
	Subcategories []string `json:"subcategories"`
}

type ThreadReport struct {
	ProcessType         string        `json:"processType"`
	ProcessName         string        `json:"processName"`
	ProcessStartupTime  float64       `json:"processStartupTime"`
	ProcessShutdownTime *float64      `json:"processShutdownTime"`
	RegisterTime        float64       `json:"registerTime"`
	UnregisterTime      *float64      `json:"unregisterTime"`
	PausedRanges        []any         `json:"pausedRanges"`
	Name                string        `json:"name"`
	IsMainThread        bool          `json:"isMainThread"`
	IsJSTracer          bool          `json:"isJsTracer"`
	PID                 uint64        `json:"pid"`
	TID                 uint64        `json:"tid"`
	Samples             SamplesTable  `json:"samples"`
	Markers             MarkersTable  `json:"markers"`
	StackTable          StackTable    `json:"stackTable"`
	FrameTable          FrameTable    `json:"frameTable"`
	StringArray         []string      `json:"stringArray"`
	FuncTable           FuncTable     `json:"funcTable"`
	ResourceTable       ResourceTable `json:"resourceTable"`
	NativeSymbols       []any         `json:"nativeSymbols"`
}

type SamplesTable struct {
	EventDelay []int   `json:"eventDelay"`
	Stack      []*int  `json:"stack"`
	Time       []int64 `json:"time"`
	Duration   []int   `json:"duration"`
	WeightType string  `json:"weightType"`
	Length     int     `json:"length"`
}

type MarkersTable struct {
	Data      []any `json:"data"`
	Name      []any `json:"name"`
	Time      []any `json:"time"`
	StartTime []any `json:"startTime"`
	EndTime   []any `json:"endTime"`
	Phase     []any `json:"phase"`
	Category  []any `json:"category"`
	Length    int   `json:"length"`
}

type StackTable struct {
	Frame       []int  `json:"frame"`
	Category    []int  `json:"category"`
	Subcategory []int  `json:"subcategory"`
	Prefix      []*int `json:"prefix"`
	Length      int    `json:"length"`
}

type FrameTable struct {
	Address       []*uint64 `json:"address"`
	Category      []int     `json:"category"`
	Subcategory   []int     `json:"subcategory"`
	Func          []int     `json:"func"`
	InnerWindowID []*int    `json:"innerWindowID"`
	// Implementation is the JIT tier, never known here.
	Implementation []*string `json:"implementation"`
	Line           []*int32  `json:"line"`
	Column         []*int32  `json:"column"`
	Optimizations  []any     `json:"optimizations"`
	InlineDepth    []int     `json:"inlineDepth"`
	NativeSymbol   []*int    `json:"nativeSymbol"`
	Length         int       `json:"length"`
}

type FuncTable struct {
	// Name and FileName are indices into the thread's string array.
	Name          []int    `json:"name"`
	IsJS          []bool   `json:"isJS"`
	RelevantForJS []bool   `json:"relevantForJS"`
	Resource      []int    `json:"resource"`
	FileName      []*int   `json:"fileName"`
	LineNumber    []*int32 `json:"lineNumber"`
	ColumnNumber  []*int32 `json:"columnNumber"`
	Length        int      `json:"length"`
}

type ResourceTable struct {
	Lib    []any `json:"lib"`
	Name   []any `json:"name"`
	Host   []any `json:"host"`
	Type   []any `json:"type"`
	Length int   `json:"length"`
}
