// Package k8s launches backfill runs as Kubernetes Jobs, so a deep
// historical scrape does not tie up the always-on workers.
package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// Client wraps the Kubernetes client
type Client struct {
	clientset *kubernetes.Clientset
	namespace string
}

// NewClient creates a new Kubernetes client.
// If namespace is empty, defaults to "cohost".
func NewClient(namespace string) (*Client, error) {
	if namespace == "" {
		namespace = "cohost"
	}

	config, err := getKubeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Client{
		clientset: clientset,
		namespace: namespace,
	}, nil
}

// getKubeConfig prefers in-cluster config and falls back to kubeconfig
func getKubeConfig() (*rest.Config, error) {
	config, err := rest.InClusterConfig()
	if err == nil {
		return config, nil
	}

	var kubeconfig string
	if home := homedir.HomeDir(); home != "" {
		kubeconfig = filepath.Join(home, ".kube", "config")
	}
	if envKubeconfig := os.Getenv("KUBECONFIG"); envKubeconfig != "" {
		kubeconfig = envKubeconfig
	}

	config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	return config, nil
}

// CreateBackfillJob creates a one-off Job that runs a deep inbox scrape
// covering up to maxThreads conversations. The job pod reads its
// configuration from the cohost-env secret, same as the workers.
func (c *Client) CreateBackfillJob(ctx context.Context, jobName, containerImage string, maxThreads int) error {
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: c.namespace,
			Labels: map[string]string{
				"app":          "cohost",
				"job-type":     "backfill",
				"triggered-by": "api",
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            int32Ptr(1),
			TTLSecondsAfterFinished: int32Ptr(86400),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{
						"app":      "cohost",
						"job-type": "backfill",
					},
				},
				Spec: c.buildPodSpec(containerImage, maxThreads),
			},
		},
	}

	_, err := c.clientset.BatchV1().Jobs(c.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (c *Client) buildPodSpec(containerImage string, maxThreads int) corev1.PodSpec {
	return corev1.PodSpec{
		RestartPolicy: corev1.RestartPolicyNever,
		Containers: []corev1.Container{
			{
				Name:    "backfill",
				Image:   containerImage,
				Command: []string{"/app/cohost", "backfill"},
				Env: []corev1.EnvVar{
					{Name: "BACKFILL_MAX_THREADS", Value: fmt.Sprintf("%d", maxThreads)},
					{Name: "BROWSER_HEADLESS", Value: "true"},
				},
				EnvFrom: []corev1.EnvFromSource{
					{
						SecretRef: &corev1.SecretEnvSource{
							LocalObjectReference: corev1.LocalObjectReference{Name: "cohost-env"},
						},
					},
				},
				VolumeMounts: []corev1.VolumeMount{
					{Name: "browser-session", MountPath: "/app/session"},
				},
				Resources: corev1.ResourceRequirements{
					Requests: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse("500m"),
						corev1.ResourceMemory: resource.MustParse("1Gi"),
					},
					Limits: corev1.ResourceList{
						corev1.ResourceCPU:    resource.MustParse("2"),
						corev1.ResourceMemory: resource.MustParse("2Gi"),
					},
				},
			},
		},
		Volumes: []corev1.Volume{
			{
				Name: "browser-session",
				VolumeSource: corev1.VolumeSource{
					PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
						ClaimName: "cohost-browser-session",
					},
				},
			},
		},
	}
}

func int32Ptr(i int32) *int32 {
	return &i
}
