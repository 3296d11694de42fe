package payment

// MergePatch applies patch onto base with JSON merge-patch semantics:
// new keys are added, existing keys overwritten, keys absent from patch
// kept, and a nil patch value removes the key. Nested objects merge
// recursively. base is not modified.
func MergePatch(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		if pv, ok := v.(map[string]any); ok {
			bv, _ := out[k].(map[string]any)
			out[k] = MergePatch(bv, pv)
			continue
		}
		out[k] = v
	}
	return out
}
