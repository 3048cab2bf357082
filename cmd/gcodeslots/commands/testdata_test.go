package commands_test

// sampleGcode exercises three tools across six layers so analyze/optimize/
// merge all have a realistic multi-color file to operate on.
const sampleGcode = `
; layer num/total_layer_count: 1/6
G1 Z0.2
T1
; layer num/total_layer_count: 2/6
G1 Z0.4
; layer num/total_layer_count: 3/6
G1 Z0.6
T0
; layer num/total_layer_count: 4/6
G1 Z0.8
T2
; layer num/total_layer_count: 5/6
G1 Z1.0
T1
; layer num/total_layer_count: 6/6
G1 Z1.2
`
