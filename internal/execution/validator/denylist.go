package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rule categories.
const (
	CategoryDynamicEval   = "dynamic-eval"
	CategoryProcessAccess = "process-access"
	CategoryModuleLoading = "module-loading"
	CategoryFilesystem    = "filesystem"
	CategorySubprocess    = "subprocess"
	CategoryNetwork       = "network"
)

// Rule is one denylisted pattern. Patterns are matched case-insensitively.
type Rule struct {
	Name     string
	Category string
	Pattern  string
}

// notMember anchors a call name so that method calls such as regex.exec(...) do not match.
// The one character it may consume is trimmed from the reported match.
const notMember = `(^|[^\w.])`

// Violation is a rule that matched a submission.
type Violation struct {
	Rule     string `json:"rule"`
	Category string `json:"category"`
	Match    string `json:"match"`
}

// DefaultRules is a heuristic pre-filter. Isolation is the judging backend's job;
// these rules only stop obviously hostile submissions from being dispatched.
// Reading stdin (process.stdin, input(), sys.stdin, Scanner(System.in), cin, scanf) must stay allowed.
var DefaultRules = []Rule{
	{Name: "eval", Category: CategoryDynamicEval, Pattern: notMember + `eval\s*\(`},
	{Name: "function-constructor", Category: CategoryDynamicEval, Pattern: `\bnew\s+Function\s*\(`},
	{Name: "exec", Category: CategoryDynamicEval, Pattern: notMember + `exec\s*\(`},
	{Name: "node-vm", Category: CategoryDynamicEval, Pattern: `require\s*\(\s*['"](node:)?vm['"]\s*\)`},

	{Name: "process-env", Category: CategoryProcessAccess, Pattern: `\bprocess\s*\.\s*(env|kill|binding|dlopen|mainModule)\b`},
	{Name: "os-environ", Category: CategoryProcessAccess, Pattern: `\bos\s*\.\s*(environ|getenv|kill)\b`},
	{Name: "java-getenv", Category: CategoryProcessAccess, Pattern: `\bSystem\s*\.\s*getenv\s*\(`},
	{Name: "c-getenv", Category: CategoryProcessAccess, Pattern: `\bgetenv\s*\(`},

	{Name: "dynamic-require", Category: CategoryModuleLoading, Pattern: "require\\s*\\(\\s*[^'\"`\\s)]"},
	{Name: "dynamic-import", Category: CategoryModuleLoading, Pattern: `\bimport\s*\(`},
	{Name: "python-dunder-import", Category: CategoryModuleLoading, Pattern: `__import__\s*\(`},
	{Name: "python-importlib", Category: CategoryModuleLoading, Pattern: `\bimportlib\b`},
	{Name: "python-ctypes", Category: CategoryModuleLoading, Pattern: `\b(import|from)\s+ctypes\b`},

	{Name: "node-fs", Category: CategoryFilesystem, Pattern: `require\s*\(\s*['"](node:)?fs(/promises)?['"]\s*\)`},
	{Name: "es-import-fs", Category: CategoryFilesystem, Pattern: `\bfrom\s+['"](node:)?fs(/promises)?['"]`},
	{Name: "python-open", Category: CategoryFilesystem, Pattern: notMember + `open\s*\(`},
	{Name: "python-shutil", Category: CategoryFilesystem, Pattern: `\b(import|from)\s+shutil\b`},
	{Name: "python-os-file-ops", Category: CategoryFilesystem, Pattern: `\bos\s*\.\s*(remove|unlink|rmdir|removedirs|rename|listdir|scandir|walk|chmod|chown|mkdir|makedirs)\s*\(`},
	{Name: "java-file-io", Category: CategoryFilesystem, Pattern: `\bnew\s+File(Reader|Writer|InputStream|OutputStream)?\s*\(`},
	{Name: "java-nio-files", Category: CategoryFilesystem, Pattern: `\bFiles\s*\.\s*(read\w*|write\w*|delete\w*|lines|new\w*|list|walk|copy|move)\s*\(`},
	{Name: "c-fopen", Category: CategoryFilesystem, Pattern: `\bfopen\s*\(`},
	{Name: "cpp-fstream", Category: CategoryFilesystem, Pattern: `\b[io]?fstream\b`},

	{Name: "node-child-process", Category: CategorySubprocess, Pattern: `\bchild_process\b`},
	{Name: "python-subprocess", Category: CategorySubprocess, Pattern: `\bsubprocess\b`},
	{Name: "os-spawn", Category: CategorySubprocess, Pattern: `\bos\s*\.\s*(system|popen|fork|exec\w*|spawn\w*)\s*\(`},
	{Name: "java-runtime-exec", Category: CategorySubprocess, Pattern: `\bRuntime\s*\.\s*getRuntime\s*\(\s*\)\s*\.\s*exec`},
	{Name: "java-process-builder", Category: CategorySubprocess, Pattern: `\bProcessBuilder\b`},
	{Name: "c-system", Category: CategorySubprocess, Pattern: notMember + `system\s*\(`},
	{Name: "c-popen", Category: CategorySubprocess, Pattern: notMember + `popen\s*\(`},
	{Name: "c-fork", Category: CategorySubprocess, Pattern: notMember + `fork\s*\(`},
	{Name: "c-exec-family", Category: CategorySubprocess, Pattern: `\bexec(l|lp|le|v|vp|vpe)\s*\(`},

	{Name: "node-net", Category: CategoryNetwork, Pattern: `require\s*\(\s*['"](node:)?(net|http|https|http2|dgram|tls|dns)['"]\s*\)`},
	{Name: "fetch", Category: CategoryNetwork, Pattern: `\bfetch\s*\(`},
	{Name: "python-network", Category: CategoryNetwork, Pattern: `\b(import|from)\s+(socket|urllib|requests|http\.client)\b`},
	{Name: "java-net", Category: CategoryNetwork, Pattern: `\bjava\s*\.\s*net\b|\bnew\s+(Server)?Socket\s*\(`},
	{Name: "c-socket", Category: CategoryNetwork, Pattern: `\bsocket\s*\(|#\s*include\s*<\s*(sys/socket\.h|netinet/|arpa/inet\.h)`},
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Denylist is a compiled rule set, safe for concurrent use.
type Denylist struct {
	rules []compiledRule
}

// NewDenylist compiles rules case-insensitively.
func NewDenylist(rules []Rule) (*Denylist, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule %s: %w", r.Name, err)
		}
		compiled = append(compiled, compiledRule{Rule: r, re: re})
	}
	return &Denylist{rules: compiled}, nil
}

// DefaultDenylist compiles DefaultRules.
func DefaultDenylist() *Denylist {
	d, err := NewDenylist(DefaultRules)
	if err != nil {
		panic(err)
	}
	return d
}

// Scan returns every rule matching source, in rule order.
func (d *Denylist) Scan(source string) []Violation {
	if d == nil {
		return nil
	}
	var violations []Violation
	for _, r := range d.rules {
		if match := r.re.FindString(source); match != "" {
			if strings.HasPrefix(r.Pattern, notMember) {
				match = trimBoundary(match)
			}
			violations = append(violations, Violation{Rule: r.Name, Category: r.Category, Match: match})
		}
	}
	return violations
}

// Len reports the number of rules.
func (d *Denylist) Len() int {
	return len(d.rules)
}

func trimBoundary(match string) string {
	r, size := utf8.DecodeRuneInString(match)
	if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
		return match
	}
	return match[size:]
}
