package server

// ServiceName is the fully qualified name both transports route under.
const ServiceName = "pix.v1.CompilerService"

// Procedure paths.
const (
	CompileProcedure = "/" + ServiceName + "/Compile"
	StartProcedure   = "/" + ServiceName + "/Start"
	StepProcedure    = "/" + ServiceName + "/Step"
	StopProcedure    = "/" + ServiceName + "/Stop"
)

// Diagnostic is a positioned compile error. Line and Column are 1-based;
// both are zero for errors without a source position.
type Diagnostic struct {
	Line    int    `cbor:"line" json:"line"`
	Column  int    `cbor:"column" json:"column"`
	Message string `cbor:"message" json:"message"`
}

type CompileRequest struct {
	Name       string `cbor:"name" json:"name"`
	Source     string `cbor:"source" json:"source"`
	MemorySize int    `cbor:"memorySize,omitempty" json:"memorySize,omitempty"`
}

type CompileResponse struct {
	Success     bool         `cbor:"success" json:"success"`
	Diagnostics []Diagnostic `cbor:"diagnostics,omitempty" json:"diagnostics,omitempty"`
	Words       int          `cbor:"words,omitempty" json:"words,omitempty"`
	Listing     string       `cbor:"listing,omitempty" json:"listing,omitempty"`
	Image       []byte       `cbor:"image,omitempty" json:"image,omitempty"`
	Cached      bool         `cbor:"cached,omitempty" json:"cached,omitempty"`
}

type StartRequest struct {
	Name       string `cbor:"name" json:"name"`
	Source     string `cbor:"source" json:"source"`
	MemorySize int    `cbor:"memorySize,omitempty" json:"memorySize,omitempty"`
	Trace      bool   `cbor:"trace,omitempty" json:"trace,omitempty"`
}

type StartResponse struct {
	RunID       string       `cbor:"runId,omitempty" json:"runId,omitempty"`
	Words       int          `cbor:"words,omitempty" json:"words,omitempty"`
	Diagnostics []Diagnostic `cbor:"diagnostics,omitempty" json:"diagnostics,omitempty"`
}

// StepRequest advances a run. Quantum zero means the server default.
type StepRequest struct {
	RunID   string `cbor:"runId" json:"runId"`
	Quantum int    `cbor:"quantum,omitempty" json:"quantum,omitempty"`
}

type StepResponse struct {
	Steps      int    `cbor:"steps" json:"steps"`
	Output     string `cbor:"output,omitempty" json:"output,omitempty"`
	Terminated bool   `cbor:"terminated" json:"terminated"`
	ExitCode   int32  `cbor:"exitCode" json:"exitCode"`
	Fault      string `cbor:"fault,omitempty" json:"fault,omitempty"`
}

type StopRequest struct {
	RunID string `cbor:"runId" json:"runId"`
}

type StopResponse struct {
	Stopped bool `cbor:"stopped" json:"stopped"`
}
