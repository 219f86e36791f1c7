// Package core implements risk classification and the approval decision for
// agent tool calls.
package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Signature is a single dangerous-command pattern.
type Signature struct {
	// Pattern is the compiled, case-insensitive regex.
	Pattern *regexp.Regexp
	// Source is the regex text as declared, without the case-insensitive flag.
	Source string
	// Level is the risk level reported when the pattern matches.
	Level RiskLevel
	// Label is a short category name.
	Label string
	// Reason explains the risk to a human reviewer.
	Reason string
}

type signatureSpec struct {
	pattern string
	level   RiskLevel
	label   string
	reason  string
}

const labelPrivilegeEscalation = "Privilege Escalation"

// rmRecursiveForce matches the flag forms of a forced recursive delete:
// -rf, -fr, -Rf, -rvf, "-r -f" and the long options.
const rmRecursiveForce = `\brm\s+(?:--?[a-z-]+\s+)*(?:-[a-z]*r[a-z]*f[a-z]*|-[a-z]*f[a-z]*r[a-z]*|-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*|-[a-z]*f[a-z]*\s+-[a-z]*r[a-z]*|--recursive\s+--force|--force\s+--recursive)`

// Escalation signatures are kept apart so IsPrivilegeEscalation scans exactly
// the entries the registry reports under labelPrivilegeEscalation.
var escalationSpecs = []signatureSpec{
	{`\b(?:sudo|doas|pkexec|runas)\b`, RiskCritical, labelPrivilegeEscalation, "Runs a command with elevated privileges"},
	{`(?:^|[\s;&|(])su\s+(?:-[a-z]*\s+)*[a-z_$-][\w$-]*`, RiskCritical, labelPrivilegeEscalation, "Switches to another user account"},
}

// Declared from most to least severe. A lower level must never precede a
// higher one: the first match wins.
var registrySpecs = []signatureSpec{
	// Destructive deletion
	{rmRecursiveForce + `\s+(?:--no-preserve-root\s+)?/(?:\s|$|\*)`, RiskCritical, "Destructive Delete", "Recursively deletes the root filesystem"},
	{rmRecursiveForce + `\s+(?:~|\$HOME|\$\{HOME\})/?(?:\s|$|\*)`, RiskCritical, "Destructive Delete", "Recursively deletes the home directory"},
	{rmRecursiveForce + `\s+\*`, RiskCritical, "Destructive Delete", "Recursively deletes everything matching a wildcard"},
	{rmRecursiveForce, RiskCritical, "Destructive Delete", "Forced recursive deletion cannot be undone"},

	// Disk destruction
	{`\bdd\s+(?:[a-z]+=\S+\s+)*if=`, RiskCritical, "Disk Destruction", "Raw block copy can overwrite disks"},
	{`\bmkfs(?:\.[a-z0-9]+)?\b`, RiskCritical, "Disk Destruction", "Formats a filesystem"},
	{`\bfdisk\b`, RiskCritical, "Disk Destruction", "Modifies the partition table"},
	{`>\s*/dev/(?:sd[a-z]|hd[a-z]|nvme\d|disk\d|mmcblk\d)`, RiskCritical, "Disk Destruction", "Writes directly to a block device"},

	// Fork bomb
	{`:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`, RiskCritical, "Fork Bomb", "Spawns processes until the system is exhausted"},

	// Remote code execution
	{`\b(?:curl|wget)\b[^|]*\|\s*(?:sudo\s+)?(?:ba|z|da|k|fi)?sh\b`, RiskCritical, "Remote Code Exec", "Pipes downloaded content straight into a shell"},
	{`\b(?:curl|wget)\b[^|]*\|\s*(?:sudo\s+)?python[0-9.]*\b`, RiskCritical, "Remote Code Exec", "Pipes downloaded content straight into an interpreter"},

	// High: security posture
	{`\biptables\s+(?:-F|--flush|-X|-P\s+\w+\s+ACCEPT)`, RiskHigh, "Firewall Tampering", "Flushes or opens firewall rules"},
	{`\bufw\s+disable\b`, RiskHigh, "Firewall Tampering", "Disables the firewall"},
	{`\bsetenforce\s+0\b`, RiskHigh, "Firewall Tampering", "Disables SELinux enforcement"},
	{`\b(?:systemctl|service)\s+(?:stop|disable|mask)\s+(?:firewalld|ufw|iptables|nftables)\b`, RiskHigh, "Firewall Tampering", "Stops the firewall service"},
	{`(?:^|[\s;&|(])(?:useradd|userdel|usermod|adduser|deluser|groupadd|groupdel|chpasswd|passwd)\b`, RiskHigh, "Account Modification", "Creates, removes or changes user accounts"},
	{`\bkill\s+(?:-(?:9|KILL|SIGKILL|15|TERM|SIGTERM)\s+)?1\b`, RiskHigh, "Process Kill", "Kills PID 1 (init)"},
	{`\bkillall\b`, RiskHigh, "Process Kill", "Kills every process matching a name"},
	{`\bcrontab\s+(?:-[a-z]+\s+)*-r\b`, RiskHigh, "Crontab Wipe", "Removes the user's entire crontab"},
	{`(?:^|[^>])>\s*\S*\.ssh/(?:authorized_keys|id_[a-z0-9_]+)\b`, RiskHigh, "SSH Key Overwrite", "Overwrites SSH keys or authorized_keys"},
	{`\bwrite_file\b.*\.ssh/(?:authorized_keys|id_[a-z0-9_]+)\b`, RiskHigh, "SSH Key Overwrite", "Overwrites SSH keys or authorized_keys"},

	// Medium: risky but recoverable
	{`\bchmod\s+(?:-[a-z]+\s+)*(?:0?777|a\+rwx|ugo\+rwx)(?:\s|$)`, RiskMedium, "Permission Exposure", "Makes files world-writable"},
	{`\bchmod\s+(?:-[a-z]+\s+)*-[a-z]*R`, RiskMedium, "Permission Exposure", "Recursively changes permissions"},
	{`\bchown\b`, RiskMedium, "Permission Exposure", "Changes file ownership"},
	{`(?:^|[\s;&|(])eval\s+\S`, RiskMedium, "Eval Execution", "Evaluates dynamically built shell code"},
	{`\bsystemctl\s+(?:stop|disable|mask)\b`, RiskMedium, "Service Disruption", "Stops or disables a system service"},
	{`\bservice\s+\S+\s+stop\b`, RiskMedium, "Service Disruption", "Stops a system service"},
}

var (
	escalationSignatures = compileSignatures(escalationSpecs)
	registry             = append(append([]Signature{}, escalationSignatures...), compileSignatures(registrySpecs)...)
)

func compileSignatures(specs []signatureSpec) []Signature {
	result := make([]Signature, 0, len(specs))
	for _, s := range specs {
		compiled, err := regexp.Compile("(?i)" + s.pattern)
		if err != nil {
			// Built-in signatures must always be valid.
			panic(fmt.Sprintf("invalid builtin signature %q: %v", s.pattern, err))
		}
		result = append(result, Signature{
			Pattern: compiled,
			Source:  s.pattern,
			Level:   s.level,
			Label:   s.label,
			Reason:  s.reason,
		})
	}
	return result
}

// Signatures returns the registry in declared order. The slice is a copy;
// the compiled patterns are shared and safe for concurrent use.
func Signatures() []Signature {
	out := make([]Signature, len(registry))
	copy(out, registry)
	return out
}

// RegistryExport is the exported signature table for external tools.
type RegistryExport struct {
	Version     string                 `json:"version"`
	GeneratedAt time.Time              `json:"generated_at"`
	SHA256      string                 `json:"sha256"`
	Signatures  []SignatureDetails     `json:"signatures"`
	Metadata    RegistryExportMetadata `json:"metadata"`
}

// SignatureDetails is a single signature for export.
type SignatureDetails struct {
	Pattern string `json:"pattern"`
	Level   string `json:"level"`
	Label   string `json:"label"`
	Reason  string `json:"reason"`
}

// RegistryExportMetadata contains summary information about the export.
type RegistryExportMetadata struct {
	SignatureCount int            `json:"signature_count"`
	LevelCounts    map[string]int `json:"level_counts"`
}

// Export returns the registry in declared order. Order is kept because it
// decides which signature wins.
func Export() *RegistryExport {
	export := &RegistryExport{
		Version:     "1.0.0",
		GeneratedAt: time.Now().UTC(),
		SHA256:      ComputeHash(),
		Signatures:  make([]SignatureDetails, 0, len(registry)),
		Metadata: RegistryExportMetadata{
			SignatureCount: len(registry),
			LevelCounts:    make(map[string]int),
		},
	}
	for _, s := range registry {
		export.Signatures = append(export.Signatures, SignatureDetails{
			Pattern: s.Source,
			Level:   string(s.Level),
			Label:   s.Label,
			Reason:  s.Reason,
		})
		export.Metadata.LevelCounts[string(s.Level)]++
	}
	return export
}

// ExportJSON returns the registry export as indented JSON.
func ExportJSON() (string, error) {
	data, err := json.MarshalIndent(Export(), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ComputeHash returns a deterministic hash of the registry for change detection.
func ComputeHash() string {
	h := sha256.New()
	for _, s := range registry {
		h.Write([]byte(fmt.Sprintf("%s:%s:%s", s.Level, s.Label, s.Source)))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
