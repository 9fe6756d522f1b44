package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
)

const templateYAML = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: template
  namespace: node-placeholder
  labels:
    app: node-placeholder-scaler
spec:
  replicas: 0
  selector:
    matchLabels:
      app: node-placeholder-scaler
      component: placeholder
  template:
    metadata:
      labels:
        app: node-placeholder-scaler
        component: placeholder
    spec:
      priorityClassName: placeholder
      terminationGracePeriodSeconds: 0
      nodeSelector:
        hub.jupyter.org/pool-name: template-pool
      containers:
      - name: pause
        image: registry.k8s.io/pause:3.9
        resources:
          requests:
            cpu: 100m
`

func requests(cpu, mem string) corev1.ResourceRequirements {
	return corev1.ResourceRequirements{
		Requests: corev1.ResourceList{
			corev1.ResourceCPU:    resource.MustParse(cpu),
			corev1.ResourceMemory: resource.MustParse(mem),
		},
	}
}

func TestBuild(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(templateYAML))
	require.NoError(t, err)

	d := Build(tmpl, "alpha", map[string]string{"hub.jupyter.org/pool-name": "alpha-pool"}, requests("500m", "1Gi"), 3)

	assert.Equal(t, "alpha-placeholder", d.Name)
	assert.Equal(t, "node-placeholder", d.Namespace)
	require.NotNil(t, d.Spec.Replicas)
	assert.Equal(t, int32(3), *d.Spec.Replicas)
	assert.Equal(t, map[string]string{"hub.jupyter.org/pool-name": "alpha-pool"}, d.Spec.Template.Spec.NodeSelector)
	assert.Equal(t, "500m", d.Spec.Template.Spec.Containers[0].Resources.Requests.Cpu().String())
	assert.Equal(t, "alpha", d.Labels[PoolLabel])
	assert.Equal(t, "placeholder", d.Spec.Template.Spec.PriorityClassName)
}

func TestBuild_TemplateUntouched(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(templateYAML))
	require.NoError(t, err)
	pristine := tmpl.DeepCopy()

	selector := map[string]string{"hub.jupyter.org/pool-name": "alpha-pool"}
	res := requests("1", "2Gi")
	d := Build(tmpl, "alpha", selector, res, 2)

	assert.Equal(t, pristine, tmpl)

	// the output must not share maps with its inputs
	selector["extra"] = "x"
	res.Requests[corev1.ResourceCPU] = resource.MustParse("8")
	assert.NotContains(t, d.Spec.Template.Spec.NodeSelector, "extra")
	assert.Equal(t, "1", d.Spec.Template.Spec.Containers[0].Resources.Requests.Cpu().String())
}

func TestBuild_Idempotent(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(templateYAML))
	require.NoError(t, err)

	first, err := Render(Build(tmpl, "beta", map[string]string{"pool": "beta"}, requests("250m", "512Mi"), 1))
	require.NoError(t, err)
	second, err := Render(Build(tmpl, "beta", map[string]string{"pool": "beta"}, requests("250m", "512Mi"), 1))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestParseTemplate_Errors(t *testing.T) {
	_, err := ParseTemplate([]byte("kind: Service\napiVersion: v1\n"))
	assert.Error(t, err)

	_, err = ParseTemplate([]byte("kind: Deployment\nspec:\n  template:\n    spec: {}\n"))
	assert.Error(t, err)

	_, err = ParseTemplate([]byte("kind: Deployment\nspec: [oops"))
	assert.Error(t, err)
}

func TestLoadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "placeholder-template.yaml")
	require.NoError(t, os.WriteFile(path, []byte(templateYAML), 0o600))

	tmpl, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, "template", tmpl.Name)

	_, err = LoadTemplate(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadTemplate_SampleTemplate(t *testing.T) {
	tmpl, err := LoadTemplate("../../configs/placeholder-template.yaml")
	require.NoError(t, err)
	assert.Equal(t, "pause", tmpl.Spec.Template.Spec.Containers[0].Name)
	assert.Equal(t, "node-placeholder", tmpl.Namespace)
}
